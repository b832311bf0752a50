package engine

import (
	"log"

	"gitlab.com/gomidi/midi/v2"

	"github.com/schollz/minidaw/internal/types"
)

// heldNote identifies a sounding note for all-notes-off tracking.
type heldNote struct {
	Channel types.MidiChannel
	Key     uint8
}

// MidiRouter delivers channel-scoped MIDI messages to the entities
// of one track. Messages never cross tracks; external MIDI is fanned
// out by the Project to every track's router.
type MidiRouter struct {
	ChannelToUids map[types.MidiChannel][]types.Uid `json:"channel_to_uids"`
	UidToChannel  map[types.Uid]types.MidiChannel   `json:"uid_to_channel"`

	// Note-ons minus note-offs per (channel, key), so stop() can
	// synthesize note-offs for everything still sounding.
	held map[heldNote]int
}

func NewMidiRouter() *MidiRouter {
	return &MidiRouter{
		ChannelToUids: make(map[types.MidiChannel][]types.Uid),
		UidToChannel:  make(map[types.Uid]types.MidiChannel),
		held:          make(map[heldNote]int),
	}
}

// Connect registers an entity as a receiver on a channel, replacing
// any prior registration.
func (r *MidiRouter) Connect(uid types.Uid, channel types.MidiChannel) {
	r.Disconnect(uid)
	r.ChannelToUids[channel] = append(r.ChannelToUids[channel], uid)
	r.UidToChannel[uid] = channel
}

func (r *MidiRouter) Disconnect(uid types.Uid) {
	channel, ok := r.UidToChannel[uid]
	if !ok {
		return
	}
	delete(r.UidToChannel, uid)
	r.ChannelToUids[channel] = removeUid(r.ChannelToUids[channel], uid)
	if len(r.ChannelToUids[channel]) == 0 {
		delete(r.ChannelToUids, channel)
	}
}

// ReceiverChannel reports the channel an entity listens on.
func (r *MidiRouter) ReceiverChannel(uid types.Uid) (types.MidiChannel, bool) {
	channel, ok := r.UidToChannel[uid]
	return channel, ok
}

// Route delivers a message to every entity registered on its
// channel. Messages the receiving entities produce in response are
// routed in turn, in the same cycle.
func (r *MidiRouter) Route(repo *EntityRepo, channel types.MidiChannel, message midi.Message) {
	type pending struct {
		channel types.MidiChannel
		message midi.Message
	}
	queue := []pending{{channel, message}}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		r.trackHeldNotes(next.channel, next.message)
		for _, uid := range r.ChannelToUids[next.channel] {
			entity, ok := repo.Entity(uid)
			if !ok {
				log.Printf("midi router: entity %s vanished; dropping message", uid)
				continue
			}
			entity.HandleMidiMessage(next.channel, next.message, func(ch types.MidiChannel, msg midi.Message) {
				queue = append(queue, pending{ch, msg})
			})
		}
	}
}

func (r *MidiRouter) trackHeldNotes(channel types.MidiChannel, message midi.Message) {
	var ch, key, velocity uint8
	switch {
	case message.GetNoteStart(&ch, &key, &velocity):
		r.held[heldNote{channel, key}]++
	case message.GetNoteEnd(&ch, &key):
		id := heldNote{channel, key}
		if r.held[id] > 1 {
			r.held[id]--
		} else {
			delete(r.held, id)
		}
	}
}

// HeldNoteCount reports how many notes are currently sounding.
func (r *MidiRouter) HeldNoteCount() int {
	count := 0
	for _, c := range r.held {
		count += c
	}
	return count
}

// AllNotesOff synthesizes a note-off for every sounding note and
// routes it.
func (r *MidiRouter) AllNotesOff(repo *EntityRepo) {
	for id := range r.held {
		for _, uid := range r.ChannelToUids[id.Channel] {
			if entity, ok := repo.Entity(uid); ok {
				entity.HandleMidiMessage(id.Channel, midi.NoteOff(uint8(id.Channel), id.Key), func(types.MidiChannel, midi.Message) {})
			}
		}
	}
	r.held = make(map[heldNote]int)
}

func (r *MidiRouter) BeforeSave() {}

func (r *MidiRouter) AfterLoad() {
	if r.ChannelToUids == nil {
		r.ChannelToUids = make(map[types.MidiChannel][]types.Uid)
	}
	if r.UidToChannel == nil {
		r.UidToChannel = make(map[types.Uid]types.MidiChannel)
	}
	r.held = make(map[heldNote]int)
}
