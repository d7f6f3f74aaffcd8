package ptu

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"math/big"
)

// CoresToMask returns floor(coresPerSocket * percent / 100).
func CoresToMask(coresPerSocket int, percent int) int {
	return coresPerSocket * percent / 100
}

// CoreMask returns the hexadecimal literal whose low-order CoresToMask(coresPerSocket, percent)
// bits are set, e.g. 12 cores at 50 percent gives 0x3f.
func CoreMask(coresPerSocket int, percent int) (string, error) {
	if coresPerSocket < 1 {
		return "", fmt.Errorf("%w: cores per socket must be at least 1, got %d", ErrUnsupportedConfiguration, coresPerSocket)
	}
	if percent < 1 || percent > 100 {
		return "", fmt.Errorf("%w: percent of cores to stress must be between 1 and 100, got %d", ErrUnsupportedConfiguration, percent)
	}
	n := CoresToMask(coresPerSocket, percent)
	if n == 0 {
		return "", fmt.Errorf("%w: %d percent of %d cores selects no cores", ErrUnsupportedConfiguration, percent, coresPerSocket)
	}
	// (1 << n) - 1
	mask := new(big.Int).Lsh(big.NewInt(1), uint(n)) // #nosec G115
	mask.Sub(mask, big.NewInt(1))
	return "0x" + mask.Text(16), nil
}
