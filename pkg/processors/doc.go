// Package processors provides the method processors served by the agent.
//
//   - MethodSet: a fixed list of methods at a single node
//   - NewDeviceProcessor: dir, ls, appName, deviceId on the root node
//   - CommandProcessor: runCmd, executed in the background with a deferred reply
//   - FSDirProcessor: a directory tree exported through afero
package processors
