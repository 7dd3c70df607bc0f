// internal/handles/cache.go
package handles

import (
	"sort"
)

// Entry is the cached state of one (pid, handle) pair. A handle value is only
// meaningful together with its process id.
type Entry struct {
	PID        int32
	Handle     int32
	Name       *string
	Present    bool
	LastStatus Status
	Retries    int
}

// HandleInfo is the consumer view of a cached handle
type HandleInfo struct {
	Handle int32   `json:"handle"`
	Name   *string `json:"name"`
	Status Status  `json:"status"`
}

// Cache stores entries in an arena. Freed slots are reused through a free
// list; lookups go through a per-process index.
type Cache struct {
	entries []Entry
	free    []int
	byPID   map[int32]map[int32]int
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{
		byPID: make(map[int32]map[int32]int),
	}
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	return len(c.entries) - len(c.free)
}

// Processes returns the number of cached processes
func (c *Cache) Processes() int {
	return len(c.byPID)
}

// Ensure returns the arena index of (pid, handle), creating the entry if
// needed. The index stays valid until the entry is purged.
func (c *Cache) Ensure(pid, handle int32) int {
	handles, ok := c.byPID[pid]
	if !ok {
		handles = make(map[int32]int)
		c.byPID[pid] = handles
	}
	if i, ok := handles[handle]; ok {
		return i
	}

	var i int
	if n := len(c.free); n > 0 {
		i = c.free[n-1]
		c.free = c.free[:n-1]
	} else {
		i = len(c.entries)
		c.entries = append(c.entries, Entry{})
	}

	c.entries[i] = Entry{PID: pid, Handle: handle}
	handles[handle] = i
	return i
}

// At returns the entry stored at index i. The pointer is invalidated by the
// next Ensure call.
func (c *Cache) At(i int) *Entry {
	return &c.entries[i]
}

// Lookup returns the entry for (pid, handle)
func (c *Cache) Lookup(pid, handle int32) (*Entry, bool) {
	i, ok := c.byPID[pid][handle]
	if !ok {
		return nil, false
	}
	return &c.entries[i], true
}

// MarkAllAbsent clears the present flag of every entry
func (c *Cache) MarkAllAbsent() {
	for i := range c.entries {
		c.entries[i].Present = false
	}
}

// Purge removes entries that are not present and processes left without
// entries. It returns the number of removed entries.
func (c *Cache) Purge() int {
	removed := 0
	for pid, handles := range c.byPID {
		for handle, i := range handles {
			if c.entries[i].Present {
				continue
			}
			delete(handles, handle)
			c.entries[i] = Entry{}
			c.free = append(c.free, i)
			removed++
		}
		if len(handles) == 0 {
			delete(c.byPID, pid)
		}
	}
	return removed
}

// PIDs returns the cached process ids in ascending order
func (c *Cache) PIDs() []int32 {
	pids := make([]int32, 0, len(c.byPID))
	for pid := range c.byPID {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids
}

// Handles returns the cached handles of pid in ascending handle order
func (c *Cache) Handles(pid int32) []HandleInfo {
	handles := c.byPID[pid]
	infos := make([]HandleInfo, 0, len(handles))
	for _, i := range handles {
		e := &c.entries[i]
		info := HandleInfo{Handle: e.Handle, Status: e.LastStatus}
		if e.Name != nil {
			name := *e.Name
			info.Name = &name
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Handle < infos[j].Handle })
	return infos
}

// Each calls fn for every entry, ordered by process id
func (c *Cache) Each(fn func(e *Entry)) {
	for _, pid := range c.PIDs() {
		handles := c.byPID[pid]
		keys := make([]int32, 0, len(handles))
		for h := range handles {
			keys = append(keys, h)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

		for _, h := range keys {
			fn(&c.entries[handles[h]])
		}
	}
}
