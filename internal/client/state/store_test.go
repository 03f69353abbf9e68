package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStore_UpdateAndLoad(t *testing.T) {
	s := NewStore(1)
	got := s.Update(func(v int) int { return v + 1 })
	assert.Equal(t, 2, got)
	assert.Equal(t, 2, s.Load())
}

func TestStore_SubscribeOrderAndCancel(t *testing.T) {
	s := NewStore("")
	var a, b []string
	cancelA := s.Subscribe(func(v string) { a = append(a, v) })
	s.Subscribe(func(v string) { b = append(b, v) })

	s.Update(func(string) string { return "x" })
	cancelA()
	s.Update(func(string) string { return "y" })

	assert.Equal(t, []string{"x"}, a)
	assert.Equal(t, []string{"x", "y"}, b)
}

func TestStore_SubscriberCanLoad(t *testing.T) {
	s := NewStore(0)
	var seen int
	s.Subscribe(func(int) { seen = s.Load() })
	s.Update(func(int) int { return 7 })
	assert.Equal(t, 7, seen)
}

func TestStore_UpdateIfVeto(t *testing.T) {
	s := NewStore(3)
	var published []int
	s.Subscribe(func(v int) { published = append(published, v) })

	got, ok := s.UpdateIf(func(v int) (int, bool) { return v * 10, false })
	assert.False(t, ok)
	assert.Equal(t, 3, got)
	assert.Equal(t, 3, s.Load())
	assert.Empty(t, published)

	got, ok = s.UpdateIf(func(v int) (int, bool) { return v * 10, true })
	assert.True(t, ok)
	assert.Equal(t, 30, got)
	assert.Equal(t, []int{30}, published)
}

func TestStore_ConcurrentUpdatesPublishInOrder(t *testing.T) {
	s := NewStore(0)
	var mu sync.Mutex
	var seen []int
	s.Subscribe(func(v int) {
		mu.Lock()
		seen = append(seen, v)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(func(v int) int { return v + 1 })
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 50)
	for i, v := range seen {
		assert.Equal(t, i+1, v)
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	_, ok := r.Last()
	assert.False(t, ok)

	r.Success("ok")
	r.Error("bad")
	last, ok := r.Last()
	assert.True(t, ok)
	assert.Equal(t, Message{Error: true, Text: "bad"}, last)
	assert.Len(t, r.Messages(), 2)
}
