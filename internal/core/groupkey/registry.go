package groupkey

import (
	"fmt"
	"strings"

	"github.com/aevon-lab/geosplit/internal/core/record"
	"github.com/google/uuid"
)

// AbsentPolicy decides where records with an absent split key land.
type AbsentPolicy string

const (
	// AbsentPerRecord gives every absent-key record its own fresh identifier.
	AbsentPerRecord AbsentPolicy = "per_record"
	// AbsentShared puts every absent-key record of a run into one random bucket.
	AbsentShared AbsentPolicy = "shared"
)

// ValidAbsentPolicy reports whether p is a known policy.
func ValidAbsentPolicy(p AbsentPolicy) bool {
	return p == AbsentPerRecord || p == AbsentShared
}

// Registry memoizes group key -> identifier for one run and keeps the mapping injective.
// Two different keys that sanitize to the same name (compared case-insensitively, since
// some filesystems fold case) are told apart with a hash suffix.
// Not safe for concurrent use; the partitioning pass is single-threaded.
type Registry struct {
	policy AbsentPolicy
	newID  func() string

	byKey  map[string]Identifier // value key -> identifier
	owners map[string]string     // folded identifier -> value key
	shared Identifier
}

// NewRegistry creates a registry for one run.
func NewRegistry(policy AbsentPolicy) *Registry {
	if policy == "" {
		policy = AbsentPerRecord
	}
	return &Registry{
		policy: policy,
		newID:  func() string { return uuid.New().String() },
		byKey:  make(map[string]Identifier),
		owners: make(map[string]string),
	}
}

// Resolve returns the identifier of the group v belongs to.
func (r *Registry) Resolve(v record.Value) Identifier {
	id, ok := Normalize(v)
	if !ok {
		return r.absent()
	}

	key := v.Key()
	if known, ok := r.byKey[key]; ok {
		return known
	}
	id = r.claim(id, key)
	r.byKey[key] = id
	return id
}

// Len returns the number of identifiers handed out so far.
func (r *Registry) Len() int {
	return len(r.owners)
}

func (r *Registry) absent() Identifier {
	if r.policy == AbsentShared && r.shared != "" {
		return r.shared
	}
	token := r.newID()
	id := r.claim(Identifier(token), "absent:"+token)
	if r.policy == AbsentShared {
		r.shared = id
	}
	return id
}

func (r *Registry) claim(id Identifier, owner string) Identifier {
	candidate := id
	for attempt := 0; ; attempt++ {
		folded := strings.ToLower(string(candidate))
		existing, taken := r.owners[folded]
		if !taken || existing == owner {
			r.owners[folded] = owner
			return candidate
		}
		candidate = Identifier(fmt.Sprintf("%s%c%s", id, replacement, suffix(owner, attempt)))
	}
}
