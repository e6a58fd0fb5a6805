//go:build !wasip1 && !wasi

package net

// presetDialFD, presetAcceptFD let tests on the developer's host platform
// stand in for the host imports that only exist inside a wasip1 build.
var (
	presetDialFD   int32 = -1
	presetAcceptFD int32 = -1
)

func SetPresetDialFD(fd int32)   { presetDialFD = fd }
func SetPresetAcceptFD(fd int32) { presetAcceptFD = fd }

func importDial(_, _ string) int32 { return presetDialFD }
func importDialFixed() int32       { return presetDialFD }
func importAccept() int32          { return presetAcceptFD }
