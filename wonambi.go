// Package wonambi decodes proprietary neurophysiology recordings into a
// common shape: a normalized header and randomly-seekable access to a
// channels-by-samples matrix. Three on-disk families are supported: the
// Blackrock continuous (.nsX) and event (.nev) formats, and the segmented
// multi-file format stored as a recording directory.
package wonambi

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/neuromarket/wonambi/blackrock"
	"github.com/neuromarket/wonambi/ktlx"
	"github.com/neuromarket/wonambi/recording"
)

// Open picks the decoder from the path: a directory is a segmented
// recording, a file is dispatched on its extension.
func Open(path string) (recording.Reader, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return ktlx.Open(path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case strings.HasPrefix(ext, ".ns"), ext == ".nev":
		return blackrock.Open(path)
	default:
		return nil, fmt.Errorf("%s: no decoder for extension %q", filepath.Base(path), ext)
	}
}
