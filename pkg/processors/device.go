package processors

import "github.com/shv-protocol/shv-go/pkg/model"

// DefaultAppName is the application name reported by appName.
const DefaultAppName = "ShvAgent"

// NewDeviceProcessor returns the methods of the agent's root node: dir, ls,
// appName and deviceId.
func NewDeviceProcessor(appName, deviceID string) *MethodSet {
	if appName == "" {
		appName = DefaultAppName
	}
	s := NewMethodSet(StandardMethods()...)
	s.Add(
		Getter("appName", model.AccessBrowse, appName),
		Getter("deviceId", model.AccessRead, deviceID),
	)
	return s
}
