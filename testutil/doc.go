// Package testutil provides testing utilities for edgeport.
//
// This package is intended for use in tests only. It provides a
// deterministic RNG for sector patterns and block-device doubles.
//
// # Sector Patterns
//
//	rng := testutil.NewRNG(seed)
//	buf := rng.Sectors(4, 512) // 4 random sectors
//	testutil.FillSector(buf[:512], 0xA5)
//
// # Device Doubles
//
//	dev := testutil.NewUntouchableDevice(t)    // fails the test when called
//	rec := testutil.NewRecordingDevice(inner)  // counts calls per command
package testutil
