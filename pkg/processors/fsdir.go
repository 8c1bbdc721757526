package processors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/spf13/afero"

	"github.com/shv-protocol/shv-go/pkg/model"
	"github.com/shv-protocol/shv-go/pkg/shvnode"
	"github.com/shv-protocol/shv-go/pkg/wire"
)

// File methods.
const (
	MethodSize = "size"
	MethodRead = "read"
)

// DefaultMaxReadSize caps a single read response.
const DefaultMaxReadSize = 1 << 20

// ErrPathNotAllowed indicates a local path segment that would escape the
// exported directory.
var ErrPathNotAllowed = errors.New("path segment not allowed")

var (
	dirMethods = model.StandardMethods()

	fileMethods = append(model.StandardMethods(),
		&model.MetaMethod{
			Name:        MethodSize,
			Signature:   model.SignatureRetVoid,
			Flags:       model.FlagIsGetter,
			AccessGrant: model.AccessRead,
			Description: "File size in bytes",
		},
		&model.MetaMethod{
			Name:        MethodRead,
			Signature:   model.SignatureRetParam,
			Flags:       model.FlagLargeResultHint,
			AccessGrant: model.AccessRead,
			Description: "Read file content, params: [offset, size] or {offset, size}",
		},
	)
)

// FSDirProcessor exports a directory tree as virtual children. Every local
// path below its node addresses a file or directory relative to the root
// of fs.
type FSDirProcessor struct {
	fs          afero.Fs
	maxReadSize int64
}

// NewFSDirProcessor serves the whole of fs. Confine fs with
// afero.NewBasePathFs when exporting a real directory.
func NewFSDirProcessor(fs afero.Fs) *FSDirProcessor {
	return &FSDirProcessor{fs: fs, maxReadSize: DefaultMaxReadSize}
}

// NewExportDirProcessor exports dir from the local filesystem.
func NewExportDirProcessor(dir string) (*FSDirProcessor, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("export dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("export dir %s: not a directory", dir)
	}
	return NewFSDirProcessor(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

// Methods implements shvnode.Processor.
func (p *FSDirProcessor) Methods(local []string) []*model.MetaMethod {
	info, err := p.stat(local)
	if err != nil {
		return nil
	}
	if info.IsDir() {
		return dirMethods
	}
	return fileMethods
}

// Children implements shvnode.Processor.
func (p *FSDirProcessor) Children(local []string) []shvnode.Child {
	name, err := fsPath(local)
	if err != nil {
		return nil
	}
	entries, err := afero.ReadDir(p.fs, name)
	if err != nil {
		return nil
	}
	out := make([]shvnode.Child, 0, len(entries))
	for _, e := range entries {
		out = append(out, shvnode.Child{Name: e.Name(), HasChildren: e.IsDir()})
	}
	return out
}

// IsLeaf implements shvnode.Processor.
func (p *FSDirProcessor) IsLeaf() bool {
	return false
}

// Call implements shvnode.Processor.
func (p *FSDirProcessor) Call(_ context.Context, call *shvnode.Call) (any, error) {
	info, err := p.stat(call.Path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &shvnode.RoutingError{Method: call.Method, LocalPath: call.Path}
	}
	switch call.Method {
	case MethodSize:
		return info.Size(), nil
	case MethodRead:
		offset, size, err := p.readRange(call.Params, info.Size())
		if err != nil {
			return nil, err
		}
		return p.read(call.Path, offset, size)
	default:
		return nil, &shvnode.RoutingError{Method: call.Method, LocalPath: call.Path}
	}
}

func (p *FSDirProcessor) stat(local []string) (os.FileInfo, error) {
	name, err := fsPath(local)
	if err != nil {
		return nil, err
	}
	return p.fs.Stat(name)
}

func (p *FSDirProcessor) read(local []string, offset, size int64) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}
	name, err := fsPath(local)
	if err != nil {
		return nil, err
	}
	f, err := p.fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, size)
	n, err := f.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

// readRange parses [offset, size] or {offset, size}. Missing values read
// from the start up to the whole file, capped at maxReadSize.
func (p *FSDirProcessor) readRange(params any, fileSize int64) (int64, int64, error) {
	var offsetV, sizeV any
	if params != nil {
		if list, ok := wire.AsList(params); ok {
			if len(list) > 2 {
				return 0, 0, shvnode.NewParamsError(MethodRead, "expected at most 2 params, got %d", len(list))
			}
			if len(list) > 0 {
				offsetV = list[0]
			}
			if len(list) > 1 {
				sizeV = list[1]
			}
		} else if m, ok := wire.AsMap(params); ok {
			offsetV, sizeV = m["offset"], m["size"]
		} else {
			return 0, 0, shvnode.NewParamsError(MethodRead, "expected list or map, got %T", params)
		}
	}

	var offset int64
	if offsetV != nil {
		n, ok := wire.AsInt(offsetV)
		if !ok || n < 0 {
			return 0, 0, shvnode.NewParamsError(MethodRead, "invalid offset %v", offsetV)
		}
		offset = n
	}
	size := fileSize - offset
	if sizeV != nil {
		n, ok := wire.AsInt(sizeV)
		if !ok || n < 0 {
			return 0, 0, shvnode.NewParamsError(MethodRead, "invalid size %v", sizeV)
		}
		size = n
	}
	if offset >= fileSize {
		size = 0
	}
	size = max(0, min(size, p.maxReadSize))
	return offset, size, nil
}

// fsPath maps a local path to a slash path below the exported root.
func fsPath(local []string) (string, error) {
	for _, seg := range local {
		if seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrPathNotAllowed, seg)
		}
	}
	return path.Join(append([]string{"/"}, local...)...), nil
}

var _ shvnode.Processor = (*FSDirProcessor)(nil)
