package diskio

import (
	"os"

	"github.com/deploymenttheory/go-fvde/internal/interfaces"
	"github.com/deploymenttheory/go-fvde/internal/types"
)

// FileHandle is the concrete interfaces.IOHandle backing one physical volume with an
// on-disk image, raw device node, or partition file.
type FileHandle struct {
	file *os.File
	size int64
}

// OpenFile opens path read-only and stats its size up front.
func OpenFile(path string) (*FileHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.Errorf(types.ErrIoFailure, "OpenFile", "%v", err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, types.Errorf(types.ErrIoFailure, "OpenFile", "stat %q: %v", path, err)
	}
	return &FileHandle{file: f, size: stat.Size()}, nil
}

var _ interfaces.IOHandle = (*FileHandle)(nil)

// ReadAt implements interfaces.IOHandle.ReadAt.
func (h *FileHandle) ReadAt(buf []byte, offset int64) (int, error) {
	n, err := h.file.ReadAt(buf, offset)
	if err != nil {
		return n, types.Errorf(types.ErrIoFailure, "FileHandle.ReadAt", "%v", err)
	}
	return n, nil
}

// Size implements interfaces.IOHandle.Size.
func (h *FileHandle) Size() (int64, error) {
	return h.size, nil
}

// Close implements interfaces.IOHandle.Close.
func (h *FileHandle) Close() error {
	if err := h.file.Close(); err != nil {
		return types.Errorf(types.ErrIoFailure, "FileHandle.Close", "%v", err)
	}
	return nil
}
