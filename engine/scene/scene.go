// Package scene groups renderable objects into logical scenes that the renderer draws
// through a camera.
package scene

import (
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-valley/engine/game_object"
)

// scene is the implementation of the Scene interface.
type scene struct {
	mu *sync.Mutex

	name   string
	active bool

	// objects keeps insertion order, which breaks render order ties.
	objects  []game_object.GameObject
	registry map[uint64]game_object.GameObject
}

// Scene manages an ordered collection of GameObjects. Thread-safe for concurrent access.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// SetName sets the scene's identifier.
	SetName(name string)

	// Active returns whether this scene is currently active for rendering.
	Active() bool

	// SetActive sets whether this scene is active for rendering.
	SetActive(active bool)

	// Count returns the number of objects in the scene.
	//
	// Returns:
	//   - int: count of objects
	Count() int

	// Add adds objects to the scene. Objects already present are ignored.
	//
	// Parameters:
	//   - objects: the objects to add
	Add(objects ...game_object.GameObject)

	// Get retrieves an object by its ID.
	// Returns nil if not found.
	//
	// Parameters:
	//   - id: the object's unique ID
	//
	// Returns:
	//   - game_object.GameObject: the object or nil
	Get(id uint64) game_object.GameObject

	// Remove removes an object from the scene by ID.
	//
	// Parameters:
	//   - id: the object's unique ID
	Remove(id uint64)

	// Clear removes all objects from the scene.
	// Does not release GPU resources.
	Clear()

	// Objects returns every object in insertion order.
	//
	// Returns:
	//   - []game_object.GameObject: a copy of the object list
	Objects() []game_object.GameObject

	// DrawList returns the enabled objects in draw order: opaque objects first, then
	// transparent ones, each group stably sorted by render order.
	//
	// Returns:
	//   - []game_object.GameObject: the objects to draw
	DrawList() []game_object.GameObject
}

var _ Scene = &scene{}

// NewScene creates an empty, active scene.
//
// Parameters:
//   - name: the scene's identifier
//   - options: functional options applied in order
//
// Returns:
//   - Scene: the new scene
func NewScene(name string, options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:       &sync.Mutex{},
		name:     name,
		active:   true,
		registry: make(map[uint64]game_object.GameObject),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *scene) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *scene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *scene) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func (s *scene) Add(objects ...game_object.GameObject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.add(objects...)
}

func (s *scene) add(objects ...game_object.GameObject) {
	for _, obj := range objects {
		if obj == nil {
			continue
		}
		if _, ok := s.registry[obj.ID()]; ok {
			continue
		}
		s.registry[obj.ID()] = obj
		s.objects = append(s.objects, obj)
	}
}

func (s *scene) Get(id uint64) game_object.GameObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry[id]
}

func (s *scene) Remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.registry[id]; !ok {
		return
	}
	delete(s.registry, id)
	s.objects = slices.DeleteFunc(s.objects, func(obj game_object.GameObject) bool {
		return obj.ID() == id
	})
}

func (s *scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = nil
	s.registry = make(map[uint64]game_object.GameObject)
}

func (s *scene) Objects() []game_object.GameObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.objects)
}

func (s *scene) DrawList() []game_object.GameObject {
	s.mu.Lock()
	objects := slices.Clone(s.objects)
	s.mu.Unlock()

	var opaque, transparent []game_object.GameObject
	for _, obj := range objects {
		if !obj.Enabled() || obj.Material() == nil || obj.Geometry() == nil {
			continue
		}
		if obj.Material().Transparent() {
			transparent = append(transparent, obj)
		} else {
			opaque = append(opaque, obj)
		}
	}
	byOrder := func(a, b game_object.GameObject) int {
		return a.RenderOrder() - b.RenderOrder()
	}
	slices.SortStableFunc(opaque, byOrder)
	slices.SortStableFunc(transparent, byOrder)
	return append(opaque, transparent...)
}
