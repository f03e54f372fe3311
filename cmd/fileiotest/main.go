package main

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/KuzCOrp/blockfs"
	"github.com/KuzCOrp/blockfs/internal/blockmap"
	"github.com/KuzCOrp/blockfs/internal/imagedev"
	"github.com/KuzCOrp/blockfs/internal/inodestore"
)

type TestConfig struct {
	NumFiles     int
	MaxFileSize  int
	MaxChunkSize int
	BlockSize    int
	ImageBlocks  uint64
	Seed         int64
}

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	config := TestConfig{
		NumFiles:     200,
		MaxFileSize:  256 * 1024,
		MaxChunkSize: 8 * 1024,
		BlockSize:    4096,
		ImageBlocks:  128 * 1024,
		Seed:         time.Now().UnixNano(),
	}

	var imagePath string
	if len(os.Args) > 1 {
		imagePath = os.Args[1]
	} else {
		imagePath = filepath.Join(os.TempDir(), "fileiotest_image.dat")
		defer os.Remove(imagePath)
	}

	img, err := imagedev.OpenImage(imagedev.ImageConfig{
		Filename:   imagePath,
		BlockSize:  config.BlockSize,
		PunchHoles: true,
	})
	if err != nil {
		log.Fatal().Msgf("Failed to open image %s: %v", imagePath, err)
	}
	defer img.Close()

	mapper := blockmap.New(blockmap.Config{Blocks: config.ImageBlocks, Discard: img})
	inodes := inodestore.New()

	fs, err := blockfs.NewFilesystem(blockfs.FilesystemConfig{
		Device:   img,
		Mapper:   mapper,
		Inodes:   inodes,
		Punch:    mapper,
		Writable: true,
		Rev:      blockfs.RevDynamic,
	})
	if err != nil {
		log.Fatal().Msgf("Failed to create filesystem: %v", err)
	}

	log.Info().Msgf("Image: %s, blocksize: %d, files: %d, seed: %d",
		imagePath, config.BlockSize, config.NumFiles, config.Seed)
	rng := rand.New(rand.NewSource(config.Seed))

	hashes := make(map[blockfs.Ino]uint64)
	sizes := make(map[blockfs.Ino]int)

	writeStart := time.Now()
	for i := 0; i < config.NumFiles; i++ {
		ino := blockfs.Ino(i + 1)
		rec := blockfs.Inode{Mode: blockfs.ModeRegular}
		if err := inodes.WriteInode(ino, &rec); err != nil {
			log.Fatal().Msgf("Failed to seed inode %d: %v", ino, err)
		}

		size := 1 + rng.Intn(config.MaxFileSize)
		data := make([]byte, size)
		rng.Read(data)

		f, err := blockfs.Open(fs, ino, blockfs.OpenWrite|blockfs.OpenCreate)
		if err != nil {
			log.Fatal().Msgf("Failed to open inode %d: %v", ino, err)
		}
		// Write in uneven chunks so segments land on every kind of block
		// boundary.
		for off := 0; off < size; {
			c := 1 + rng.Intn(config.MaxChunkSize)
			if off+c > size {
				c = size - off
			}
			n, err := f.Write(data[off : off+c])
			if err != nil {
				log.Fatal().Msgf("Write failed on inode %d at %d: %v", ino, off, err)
			}
			off += n
		}
		if err := f.Close(); err != nil {
			log.Error().Msgf("Close failed on inode %d: %v", ino, err)
		}
		hashes[ino] = xxhash.Sum64(data)
		sizes[ino] = size
	}
	writeDur := time.Since(writeStart)

	verify := func(stage string) int {
		mismatches := 0
		for ino, want := range hashes {
			f, err := blockfs.Open(fs, ino, 0)
			if err != nil {
				log.Fatal().Msgf("Failed to reopen inode %d: %v", ino, err)
			}
			got := make([]byte, sizes[ino])
			n, err := f.Read(got)
			if err != nil {
				log.Fatal().Msgf("Read failed on inode %d: %v", ino, err)
			}
			if n != sizes[ino] || xxhash.Sum64(got[:n]) != want {
				log.Error().Msgf("%s: inode %d content mismatch (%d of %d bytes)",
					stage, ino, n, sizes[ino])
				mismatches++
			}
			f.Close()
		}
		return mismatches
	}

	verifyStart := time.Now()
	mismatches := verify("readback")
	verifyDur := time.Since(verifyStart)

	// Shrink every file to half, grow it back and check the tail is zero.
	truncStart := time.Now()
	truncBad := 0
	for ino := range hashes {
		size := sizes[ino]
		f, err := blockfs.Open(fs, ino, blockfs.OpenWrite)
		if err != nil {
			log.Fatal().Msgf("Failed to reopen inode %d: %v", ino, err)
		}
		if err := f.SetSize(uint64(size / 2)); err != nil {
			log.Fatal().Msgf("Shrink failed on inode %d: %v", ino, err)
		}
		if err := f.SetSize(uint64(size)); err != nil {
			log.Fatal().Msgf("Grow failed on inode %d: %v", ino, err)
		}
		if _, err := f.Seek(int64(size/2), io.SeekStart); err != nil {
			log.Fatal().Msgf("Seek failed on inode %d: %v", ino, err)
		}
		tail := make([]byte, size-size/2)
		n, _ := f.Read(tail)
		for i := 0; i < n; i++ {
			if tail[i] != 0 {
				log.Error().Msgf("truncate: inode %d byte %d not zero", ino, size/2+i)
				truncBad++
				break
			}
		}
		f.Close()
	}
	truncDur := time.Since(truncStart)

	fmt.Println(formatReport(config, img.Stat, mapper, writeDur, verifyDur, truncDur, mismatches, truncBad))
	if mismatches > 0 || truncBad > 0 {
		os.Exit(1)
	}
}

func formatReport(config TestConfig, stat *imagedev.Stat, mapper *blockmap.Map,
	writeDur, verifyDur, truncDur time.Duration, mismatches, truncBad int) string {

	return fmt.Sprintf(`
=== fileiotest report ===
Files:            %d
Write phase:      %v
Verify phase:     %v (%d mismatches)
Truncate phase:   %v (%d bad tails)
Device reads:     %d
Device writes:    %d
Device punches:   %d
Free blocks:      %d / %d
`,
		config.NumFiles, writeDur, verifyDur, mismatches, truncDur, truncBad,
		stat.ReadCount, stat.WriteCount, stat.PunchCount,
		mapper.FreeBlocks(), config.ImageBlocks)
}
