package vaultfs

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// ParallelConfig controls parallel per-block cipher processing
type ParallelConfig struct {
	// Enabled enables parallel block processing
	Enabled bool

	// MaxWorkers is the maximum number of worker goroutines
	// If 0, defaults to runtime.NumCPU()
	MaxWorkers int

	// MinBlocksForParallel is the minimum number of blocks in one scratch
	// chunk before workers are used. Below it processing is sequential.
	MinBlocksForParallel int
}

// Validate checks if the parallel configuration is valid
func (p *ParallelConfig) Validate() error {
	if !p.Enabled {
		return nil // Nothing to validate if disabled
	}

	if p.MaxWorkers < 0 {
		return errors.New("parallel max workers cannot be negative")
	}
	if p.MaxWorkers > 1024 {
		return errors.New("parallel max workers must not exceed 1024")
	}
	if p.MinBlocksForParallel < 1 {
		return errors.New("parallel min blocks threshold must be at least 1")
	}

	return nil
}

// DefaultParallelConfig returns the default parallel processing configuration
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{
		Enabled:              true,
		MaxWorkers:           runtime.NumCPU(),
		MinBlocksForParallel: 64,
	}
}

// blockFunc transforms one block in place
type blockFunc func(block []byte, sector uint64) error

// processBlocks applies fn to every blockSize slice of buf. The first block
// has sector firstSector.
func processBlocks(cfg ParallelConfig, buf []byte, blockSize int, firstSector uint64, fn blockFunc) error {
	count := len(buf) / blockSize
	if count == 0 {
		return nil
	}

	if !cfg.Enabled || count < cfg.MinBlocksForParallel {
		for i := 0; i < count; i++ {
			if err := fn(buf[i*blockSize:(i+1)*blockSize], firstSector+uint64(i)); err != nil {
				return err
			}
		}
		return nil
	}

	// Determine number of workers
	numWorkers := cfg.MaxWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > count {
		numWorkers = count
	}

	var wg sync.WaitGroup
	jobChan := make(chan int, count)
	errChan := make(chan error, numWorkers)

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					err := fmt.Errorf("panic in block worker: %v", r)
					select {
					case errChan <- err:
					default:
					}
				}
			}()
			for idx := range jobChan {
				block := buf[idx*blockSize : (idx+1)*blockSize]
				if err := fn(block, firstSector+uint64(idx)); err != nil {
					select {
					case errChan <- err:
					default:
					}
					return
				}
			}
		}()
	}

	for i := 0; i < count; i++ {
		jobChan <- i
	}
	close(jobChan)

	wg.Wait()
	close(errChan)

	select {
	case err := <-errChan:
		return err
	default:
		return nil
	}
}
