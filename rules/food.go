package rules

import (
	"encoding/binary"
	"hash/fnv"

	"golang.org/x/exp/rand"

	"github.com/brensch/snekcore/game"
)

// FoodSettings matches the common Battlesnake server knobs:
// - MinimumFood: ensure at least this many food items exist after each turn
// - FoodSpawnChance: percentage chance (0-100) to spawn one extra food each turn
//
// Battlesnake engine defaults are commonly MinimumFood=1 and FoodSpawnChance=15.
type FoodSettings struct {
	MinimumFood     int `yaml:"minimum_food"`
	FoodSpawnChance int `yaml:"spawn_chance"`
}

var DefaultFoodSettings = FoodSettings{MinimumFood: 1, FoodSpawnChance: 15}

// Spawning wraps a ruleset and spawns food after every Apply.
//
// Searches should not use it: with a nil Rng the placement is a deterministic
// hash of the board, but food appearing in the tree is noise to them. It is
// meant for playing real games.
type Spawning struct {
	Ruleset
	Settings FoodSettings
	Rng      *rand.Rand
}

func (s *Spawning) Apply(b *game.Board, moves game.JointMove) error {
	if err := s.Ruleset.Apply(b, moves); err != nil {
		return err
	}
	applyFoodRules(b, s.Rng, s.Settings, 0x464F4F445F545552) // "FOOD_TUR" salt
	return nil
}

// ApplyFoodSettings applies Battlesnake-style food spawning to an existing
// board. This is useful for initialization (e.g. ensure MinimumFood at game start).
func ApplyFoodSettings(b *game.Board, rng *rand.Rand, settings FoodSettings) {
	applyFoodRules(b, rng, settings, 0x464F4F445F494E49) // "FOOD_INI" salt
}

func applyFoodRules(b *game.Board, rng *rand.Rand, settings FoodSettings, salt uint64) {
	if b == nil || b.Width <= 0 || b.Height <= 0 {
		return
	}
	if settings.MinimumFood < 0 {
		settings.MinimumFood = 0
	}
	if settings.FoodSpawnChance < 0 {
		settings.FoodSpawnChance = 0
	}
	if settings.FoodSpawnChance > 100 {
		settings.FoodSpawnChance = 100
	}

	// Determine whether we will spawn any food BEFORE doing expensive work.
	deficit := settings.MinimumFood - len(b.Food)
	if deficit < 0 {
		deficit = 0
	}

	spawnExtra := false
	if settings.FoodSpawnChance > 0 {
		if rng != nil {
			spawnExtra = rng.Intn(100) < settings.FoodSpawnChance
		} else {
			spawnExtra = int(deterministicU64Fast(b, salt)%100) < settings.FoodSpawnChance
		}
	}

	toSpawn := deficit
	if spawnExtra {
		toSpawn++
	}
	if toSpawn == 0 {
		return
	}

	if rng == nil {
		seed := deterministicU64Fast(b, salt)
		if seed == 0 {
			seed = 1
		}
		rng = rand.New(rand.NewSource(seed))
	}

	occupied := make(map[game.Point]struct{}, int(b.Width*b.Height))
	for _, s := range b.Snakes {
		for _, p := range s.Body {
			occupied[p] = struct{}{}
		}
	}
	for _, f := range b.Food {
		occupied[f] = struct{}{}
	}

	available := make([]game.Point, 0, int(b.Width*b.Height))
	for y := int32(0); y < b.Height; y++ {
		for x := int32(0); x < b.Width; x++ {
			p := game.Point{X: x, Y: y}
			if _, ok := occupied[p]; ok {
				continue
			}
			available = append(available, p)
		}
	}

	for ; toSpawn > 0 && len(available) > 0; toSpawn-- {
		i := rng.Intn(len(available))
		b.Food = append(b.Food, available[i])
		available[i] = available[len(available)-1]
		available = available[:len(available)-1]
	}
}

// deterministicU64Fast mixes turn, board size, snake heads and food count.
// It is cheap enough to run every tick.
func deterministicU64Fast(b *game.Board, salt uint64) uint64 {
	h := fnv.New64a()
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], uint64(uint32(b.Width))|(uint64(uint32(b.Height))<<32))
	_, _ = h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(uint32(b.Turn)))
	_, _ = h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], salt)
	_, _ = h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(len(b.Food)))
	_, _ = h.Write(buf[:])

	for _, s := range b.Snakes {
		_, _ = h.Write([]byte(s.ID))
		head := s.Head()
		binary.LittleEndian.PutUint64(buf[:], (uint64(uint32(head.X))<<32)|uint64(uint32(head.Y)))
		_, _ = h.Write(buf[:])
	}

	return h.Sum64()
}
