package edgeport_test

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/hupe1980/edgeport"
	"github.com/hupe1980/edgeport/bdev"
	"github.com/hupe1980/edgeport/bdev/blobdev"
	"github.com/hupe1980/edgeport/blobstore"
	"github.com/hupe1980/edgeport/osal"
)

// Example demonstrates mounting a RAM disk as volume 0.
func Example() {
	ctx := context.Background()

	table := edgeport.NewTable(1)
	if err := table.Register(0, bdev.NewMemoryDevice(512, 65536), edgeport.VolumeConfig{PathPrefix: "/"}); err != nil {
		log.Fatal(err)
	}

	bd := edgeport.New(table)
	if err := bd.Open(ctx, 0, edgeport.OpenReadWrite); err != nil {
		log.Fatal(err)
	}
	defer bd.Close(ctx, 0)

	var geo bdev.Geometry
	if err := bd.GetGeometry(ctx, 0, &geo); err != nil {
		log.Fatal(err)
	}

	sector := make([]byte, geo.SectorSize)
	copy(sector, "hello")
	if err := bd.Write(ctx, 0, 10, 1, sector); err != nil {
		log.Fatal(err)
	}
	if err := bd.Flush(ctx, 0); err != nil {
		log.Fatal(err)
	}

	got := make([]byte, geo.SectorSize)
	if err := bd.Read(ctx, 0, 10, 1, got); err != nil {
		log.Fatal(err)
	}

	fmt.Println(geo)
	fmt.Println(string(got[:5]))
	// Output:
	// 65536 x 512B
	// hello
}

// Example_errors demonstrates the errno-style status of a rejected request.
func Example_errors() {
	ctx := context.Background()
	bd := edgeport.New(edgeport.NewTable(1))

	err := bd.Read(ctx, 0, 0, 1, make([]byte, 512))
	fmt.Println(errors.Is(err, edgeport.ErrInvalidArgument), edgeport.StatusOf(err))
	// Output: true EINVAL
}

// Example_blobVolume demonstrates a volume whose sectors live as chunks in a
// blob store.
func Example_blobVolume() {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	dev, err := blobdev.Create(ctx, store, "vol0", bdev.Geometry{SectorSize: 512, SectorCount: 4096},
		blobdev.WithCompression(blobdev.CompressionLZ4))
	if err != nil {
		log.Fatal(err)
	}

	table := edgeport.NewTable(1)
	if err := table.Register(0, dev, edgeport.VolumeConfig{PathPrefix: "/", BlockIORetries: 2}); err != nil {
		log.Fatal(err)
	}
	bd := edgeport.New(table)
	if err := bd.Open(ctx, 0, edgeport.OpenReadWrite); err != nil {
		log.Fatal(err)
	}

	var geo bdev.Geometry
	_ = bd.GetGeometry(ctx, 0, &geo)
	_ = bd.Write(ctx, 0, 0, 8, make([]byte, 8*geo.SectorSize))

	fmt.Println("allocated chunks:", dev.Allocated())
	// Output: allocated chunks: 1
}

// Example_metadataLock demonstrates the metadata lock of a multi-task core.
func Example_metadataLock() {
	lock := edgeport.NewLocker(4, osal.NewKernel(osal.DefaultMaxObjects))
	if err := lock.Init(); err != nil {
		log.Fatal(err)
	}
	defer lock.Uninit()

	lock.Acquire()
	fmt.Println("metadata locked")
	lock.Release()
	// Output: metadata locked
}
