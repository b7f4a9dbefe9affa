package models

import (
	"encoding/json"
	"sort"
)

// ArtifactKind names a category of extracted intelligence.
type ArtifactKind string

const (
	KindUPIID             ArtifactKind = "upi_ids"
	KindPhoneNumber       ArtifactKind = "phone_numbers"
	KindURL               ArtifactKind = "urls"
	KindPhishingLink      ArtifactKind = "phishing_links"
	KindBankAccount       ArtifactKind = "bank_accounts"
	KindIFSCCode          ArtifactKind = "ifsc_codes"
	KindSuspiciousKeyword ArtifactKind = "suspicious_keywords"
)

// AllKinds lists every artifact kind in a stable order.
var AllKinds = []ArtifactKind{
	KindUPIID,
	KindPhoneNumber,
	KindURL,
	KindPhishingLink,
	KindBankAccount,
	KindIFSCCode,
	KindSuspiciousKeyword,
}

// HighValueKinds are the artifacts that identify where money goes.
var HighValueKinds = []ArtifactKind{KindBankAccount, KindUPIID, KindPhoneNumber}

// Set is a deduplicated collection of strings. Order is irrelevant; JSON output is sorted.
type Set map[string]struct{}

// NewSet returns a fresh set holding values.
func NewSet(values ...string) Set {
	s := make(Set, len(values))
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts v and reports whether it was new. Empty strings are ignored.
func (s Set) Add(v string) bool {
	if v == "" {
		return false
	}
	if _, ok := s[v]; ok {
		return false
	}
	s[v] = struct{}{}
	return true
}

// Has reports membership.
func (s Set) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Sorted returns the members in lexical order. Never nil.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// SubsetOf reports whether every member of s is in other.
func (s Set) SubsetOf(other Set) bool {
	for v := range s {
		if !other.Has(v) {
			return false
		}
	}
	return true
}

func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *Set) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = NewSet(values...)
	return nil
}

// Intelligence maps each artifact kind to the distinct values found for it.
// Always build one with NewIntelligence so no two instances share a container.
type Intelligence map[ArtifactKind]Set

// NewIntelligence returns an Intelligence with a fresh empty set per kind.
func NewIntelligence() Intelligence {
	intel := make(Intelligence, len(AllKinds))
	for _, k := range AllKinds {
		intel[k] = make(Set)
	}
	return intel
}

// Add records value under kind, creating the set if needed.
func (in Intelligence) Add(kind ArtifactKind, value string) bool {
	set, ok := in[kind]
	if !ok {
		set = make(Set)
		in[kind] = set
	}
	return set.Add(value)
}

// Values returns the set for kind, or an empty set.
func (in Intelligence) Values(kind ArtifactKind) Set {
	if set, ok := in[kind]; ok {
		return set
	}
	return Set{}
}

// Merge unions other into in and reports whether anything new was added.
// Values are never removed.
func (in Intelligence) Merge(other Intelligence) bool {
	added := false
	for kind, set := range other {
		for v := range set {
			if in.Add(kind, v) {
				added = true
			}
		}
	}
	return added
}

// Clone returns a deep copy.
func (in Intelligence) Clone() Intelligence {
	out := NewIntelligence()
	out.Merge(in)
	return out
}

// Empty reports whether no kind holds any value.
func (in Intelligence) Empty() bool {
	for _, set := range in {
		if len(set) > 0 {
			return false
		}
	}
	return true
}

// HighValueKindCount counts distinct high-value kinds that hold at least one value.
func (in Intelligence) HighValueKindCount() int {
	n := 0
	for _, k := range HighValueKinds {
		if len(in.Values(k)) > 0 {
			n++
		}
	}
	return n
}

// SubsetOf reports whether every set of in is contained in the matching set of other.
func (in Intelligence) SubsetOf(other Intelligence) bool {
	for kind, set := range in {
		if !set.SubsetOf(other.Values(kind)) {
			return false
		}
	}
	return true
}

// ExtractedIntelligence is the external camelCase projection used in replies
// and callback payloads.
type ExtractedIntelligence struct {
	BankAccounts       []string `json:"bankAccounts"`
	UPIIDs             []string `json:"upiIds"`
	PhishingLinks      []string `json:"phishingLinks"`
	PhoneNumbers       []string `json:"phoneNumbers"`
	SuspiciousKeywords []string `json:"suspiciousKeywords"`
}

// Project builds the external view. Only URLs flagged as phishing links are
// exposed; plain URLs and IFSC codes stay internal.
func (in Intelligence) Project() ExtractedIntelligence {
	return ExtractedIntelligence{
		BankAccounts:       in.Values(KindBankAccount).Sorted(),
		UPIIDs:             in.Values(KindUPIID).Sorted(),
		PhishingLinks:      in.Values(KindPhishingLink).Sorted(),
		PhoneNumbers:       in.Values(KindPhoneNumber).Sorted(),
		SuspiciousKeywords: in.Values(KindSuspiciousKeyword).Sorted(),
	}
}
