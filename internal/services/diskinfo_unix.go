//go:build linux || darwin || freebsd

package services

import (
	"syscall"

	"spacesweep/internal/domain"
)

func diskInfoFor(path string) domain.DiskInfo {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return domain.DiskInfo{}
	}
	blockSize := int64(stat.Bsize)
	total := int64(stat.Blocks) * blockSize
	free := int64(stat.Bavail) * blockSize
	return domain.DiskInfo{
		TotalSpace: total,
		FreeSpace:  free,
		UsedSpace:  total - int64(stat.Bfree)*blockSize,
	}
}
