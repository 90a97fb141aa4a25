package main

import (
	"math"
	"testing"
)

func testBuffer() *InputBuffer {
	return NewInputBuffer(1000, nil)
}

func TestInputPushAndDrain(t *testing.T) {
	b := testBuffer()
	if !b.Push(Input{Seq: 1, Throttle: 0.5}) {
		t.Fatal("valid input rejected")
	}
	in, ok := b.Drain(0)
	if !ok || in.Seq != 1 || in.Throttle != 0.5 {
		t.Fatalf("drain = %+v, %v", in, ok)
	}
	// Buffer is emptied by drain
	if _, ok := b.Drain(0); ok {
		t.Error("second drain should find nothing")
	}
}

func TestInputValidationRejectsRange(t *testing.T) {
	b := testBuffer()
	bad := []Input{
		{Seq: 1, Throttle: 1.5},
		{Seq: 2, Throttle: -2},
		{Seq: 3, Steer: 9},
		{Seq: 4, AimYaw: math.NaN()},
		{Seq: 5, AimYaw: math.Inf(1)},
		{Seq: 6, Throttle: math.NaN()},
	}
	for _, in := range bad {
		if b.Push(in) {
			t.Errorf("invalid input accepted: %+v", in)
		}
	}
	if b.Len() != 0 {
		t.Errorf("buffer holds %d inputs after invalid pushes", b.Len())
	}
}

func TestInputReplayRejected(t *testing.T) {
	b := testBuffer()
	if !b.Push(Input{Seq: 5, Throttle: 1}) {
		t.Fatal("first seq=5 rejected")
	}
	if b.Push(Input{Seq: 5, Throttle: -1}) {
		t.Error("replayed seq=5 accepted")
	}
	if b.Push(Input{Seq: 4, Throttle: -1}) {
		t.Error("older seq accepted")
	}
	in, ok := b.Drain(0)
	if !ok || in.Throttle != 1 {
		t.Errorf("accepted input should be the first seq=5, got %+v", in)
	}
}

func TestInputSeqGapsAllowed(t *testing.T) {
	b := testBuffer()
	if !b.Push(Input{Seq: 1}) || !b.Push(Input{Seq: 10}) || !b.Push(Input{Seq: 100}) {
		t.Fatal("gapped sequences should be accepted")
	}
	in, _ := b.Drain(0)
	if in.Seq != 100 {
		t.Errorf("latest-wins drain returned seq %d", in.Seq)
	}
}

func TestInputOverflowNewestWins(t *testing.T) {
	b := testBuffer()
	for i := 1; i <= inputBufferCap+4; i++ {
		b.Push(Input{Seq: uint32(i)})
	}
	if b.Len() != inputBufferCap {
		t.Fatalf("buffer len %d, want %d", b.Len(), inputBufferCap)
	}
	in, ok := b.Drain(0)
	if !ok || in.Seq != uint32(inputBufferCap+4) {
		t.Errorf("newest input lost on overflow: %+v", in)
	}
}

func TestInputRateLimit(t *testing.T) {
	b := NewInputBuffer(10, nil)
	accepted := 0
	for i := 1; i <= 100; i++ {
		if b.Push(Input{Seq: uint32(i)}) {
			accepted++
		}
	}
	if accepted != 10 {
		t.Errorf("accepted %d inputs in one window, limit is 10", accepted)
	}
}

func TestInputDrainRespectsLastAccepted(t *testing.T) {
	b := testBuffer()
	b.Push(Input{Seq: 3})
	if _, ok := b.Drain(3); ok {
		t.Error("drain returned input not newer than last accepted")
	}
	b.Push(Input{Seq: 4})
	if in, ok := b.Drain(3); !ok || in.Seq != 4 {
		t.Errorf("drain(3) = %+v, %v", in, ok)
	}
}
