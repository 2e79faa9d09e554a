//go:build !(linux || darwin || freebsd)

package services

import "spacesweep/internal/domain"

func diskInfoFor(string) domain.DiskInfo {
	return domain.DiskInfo{}
}
