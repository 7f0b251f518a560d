package wiggle

import "github.com/akmonengine/wiggle/armature"

const (
	TREE_REBUILT EventType = iota
	STALE_TREE
	BONE_RESET
	BAKE_COMPLETE
)

// EventType tags the simulation events a listener can subscribe to
type EventType uint8

// Event is anything the simulation reports to its listeners
type Event interface {
	Type() EventType
}

// TreeRebuiltEvent is sent whenever the jiggle tree is regenerated
type TreeRebuiltEvent struct {
	Tree *Forest
}

func (e TreeRebuiltEvent) Type() EventType { return TREE_REBUILT }

// StaleTreeEvent is sent when the tree no longer matched the scene; the
// current pass was skipped and the tree rebuilt
type StaleTreeEvent struct {
	Err error
}

func (e StaleTreeEvent) Type() EventType { return STALE_TREE }

// BoneResetEvent is sent for every bone zeroed by Reset
type BoneResetEvent struct {
	Bone BoneID
}

func (e BoneResetEvent) Type() EventType { return BONE_RESET }

// BakeCompleteEvent is sent once a bake has written its action
type BakeCompleteEvent struct {
	Skeleton   string
	Action     *armature.Action
	FrameStart int
	FrameEnd   int
}

func (e BakeCompleteEvent) Type() EventType { return BAKE_COMPLETE }

// EventListener receives the events of the type it subscribed to
type EventListener func(event Event)

// Events queues simulation events during a pass and dispatches them when the
// pass ends
type Events struct {
	listeners map[EventType][]EventListener
	// queued since the last flush
	buffer []Event
}

func NewEvents() Events {
	return Events{
		listeners: make(map[EventType][]EventListener),
		buffer:    make([]Event, 0, 64),
	}
}

// Subscribe adds a listener for an event type
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	if e.listeners == nil {
		e.listeners = make(map[EventType][]EventListener)
	}
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

func (e *Events) emit(event Event) {
	e.buffer = append(e.buffer, event)
}

// flush sends all buffered events and clears the buffer.
// Listeners may trigger new events; those are sent by the next flush.
func (e *Events) flush() {
	if len(e.buffer) == 0 {
		return
	}
	pending := e.buffer
	e.buffer = make([]Event, 0, cap(pending))

	for _, event := range pending {
		if listeners, ok := e.listeners[event.Type()]; ok {
			for _, listener := range listeners {
				listener(event)
			}
		}
	}
}
