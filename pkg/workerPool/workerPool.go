// Package workerpool runs table jobs on a fixed set of goroutines and
// gathers their errors per room.
package workerpool

import (
	"errors"
	"runtime"
	"sync"
)

var (
	ErrGlobalBufferFull = errors.New("workerpool: global buffer is full")
	ErrRoomBufferFull   = errors.New("workerpool: room buffer is full")
)

type WorkerPool struct {
	config    Config
	taskQueue chan task
	workers   sync.WaitGroup
	closeOnce sync.Once
}

type Config struct {
	WorkerCount  int
	GlobalBuffer int
}

// Room groups the jobs of one caller so their results can be collected
// together.
type Room struct {
	resultChan chan error
	wg         sync.WaitGroup
	wp         *WorkerPool
}

type task struct {
	run  func() error
	room *Room
}

func NewWorkerPool(config Config) *WorkerPool {
	if config.WorkerCount < 1 {
		config.WorkerCount = runtime.NumCPU() * 3
	}

	if config.GlobalBuffer < 1 {
		config.GlobalBuffer = 10000
	}

	wp := &WorkerPool{
		config:    config,
		taskQueue: make(chan task, config.GlobalBuffer),
	}

	wp.workers.Add(config.WorkerCount)
	for i := 0; i < config.WorkerCount; i++ {
		go wp.worker()
	}

	return wp
}

func (wp *WorkerPool) worker() {
	defer wp.workers.Done()
	for t := range wp.taskQueue {
		t.room.resultChan <- t.run()
		t.room.wg.Done()
	}
}

// Close stops the workers after the queued jobs ran. No job may be added
// afterwards.
func (wp *WorkerPool) Close() {
	wp.closeOnce.Do(func() {
		close(wp.taskQueue)
	})
	wp.workers.Wait()
}

// CreateRoom returns a room that can hold size results before Collect.
func (wp *WorkerPool) CreateRoom(size int) *Room {
	return &Room{
		resultChan: make(chan error, size),
		wp:         wp,
	}
}

// NewTaskWaitForFreeSlot queues job, blocking while the pool or the room is
// full.
func (ro *Room) NewTaskWaitForFreeSlot(job func() error) {
	ro.wg.Add(1)
	ro.wp.taskQueue <- task{run: job, room: ro}
}

// NewTask queues job or fails right away when a buffer is full.
func (ro *Room) NewTask(job func() error) error {
	if len(ro.wp.taskQueue) == cap(ro.wp.taskQueue) {
		return ErrGlobalBufferFull
	}

	if len(ro.resultChan) == cap(ro.resultChan) {
		return ErrRoomBufferFull
	}

	ro.NewTaskWaitForFreeSlot(job)

	return nil
}

// Collect waits for every job of the room and returns the errors they
// produced. The room must not be used afterwards.
func (ro *Room) Collect() []error {
	go ro.waitAndClose()

	var errs []error
	for err := range ro.resultChan {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (ro *Room) waitAndClose() {
	ro.wg.Wait()
	close(ro.resultChan)
}
