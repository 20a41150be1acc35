//go:build windows

package sys

import "golang.org/x/sys/windows"

// FreeSpace reports the available bytes on the volume holding path.
func FreeSpace(path string) (uint64, error) {
	var free, total, totalFree uint64

	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}

	if err := windows.GetDiskFreeSpaceEx(p, &free, &total, &totalFree); err != nil {
		return 0, err
	}

	return free, nil
}
