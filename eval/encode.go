package eval

import (
	"sort"
	"sync"

	"github.com/brensch/snekcore/game"
)

const (
	Width     = 11
	Height    = 11
	Channels  = 10
	InputSize = Channels * Width * Height
)

// Channel layout:
// 0: food
// 1: hazards
// 2..5: body TTL (ego, then up to 3 enemies ordered by id)
// 6..9: health planes in the same snake order
const (
	chanFood    = 0
	chanHazard  = 1
	chanTTL     = 2
	chanHealth  = 6
	maxEnemies  = 3
	planeStride = Width * Height
)

var floatPool = sync.Pool{
	New: func() interface{} {
		b := make([]float32, InputSize)
		return &b
	},
}

// PutBuffer returns a buffer from Encode to the pool.
func PutBuffer(b *[]float32) {
	floatPool.Put(b)
}

// Encode writes an ego-centric [Channels, Height, Width] tensor of g into a
// pooled slice. Cells outside the 11x11 window are dropped. Callers return
// the slice with PutBuffer.
func Encode(g *game.Game) *[]float32 {
	dataPtr := floatPool.Get().(*[]float32)
	data := *dataPtr
	clear(data)

	set := func(c int, p game.Point, val float32) {
		x, y := int(p.X), int(p.Y)
		if x < 0 || x >= Width || y < 0 || y >= Height {
			return
		}
		data[c*planeStride+y*Width+x] = val
	}

	b := g.Board
	for _, p := range b.Food {
		set(chanFood, p, 1)
	}
	for _, p := range b.Hazards {
		set(chanHazard, p, 1)
	}

	encodeSnake := func(slot int, s *game.Snake) {
		if s == nil || s.Health <= 0 || len(s.Body) == 0 {
			return
		}
		health := float32(s.Health) / float32(game.MaxHealth)
		start := (chanHealth + slot) * planeStride
		for i := start; i < start+planeStride; i++ {
			data[i] = health
		}
		// Head is 1, tail is 1/len.
		l := float32(len(s.Body))
		for i, p := range s.Body {
			set(chanTTL+slot, p, (l-float32(i))/l)
		}
	}

	ego, _ := g.You()
	enemies := make([]*game.Snake, 0, len(b.Snakes))
	for i := range b.Snakes {
		if b.Snakes[i].ID != g.YouID {
			enemies = append(enemies, &b.Snakes[i])
		}
	}
	sort.Slice(enemies, func(i, j int) bool { return enemies[i].ID < enemies[j].ID })
	if len(enemies) > maxEnemies {
		enemies = enemies[:maxEnemies]
	}

	encodeSnake(0, ego)
	for i, s := range enemies {
		encodeSnake(1+i, s)
	}
	return dataPtr
}
