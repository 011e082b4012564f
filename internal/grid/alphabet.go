package grid

// AlphabetMap routes each letter A-Z to a slot identifier.
type AlphabetMap struct {
	letters   [26]string
	errorSlot string
}

// BuildAlphabetMap assigns the first 26 assignable slots, in canonical
// (column, row) order, to A-Z. Letters beyond the assignable count map to
// the Error Slot.
func BuildAlphabetMap(g *Grid) AlphabetMap {
	m := AlphabetMap{errorSlot: g.ErrorSlotID()}
	next := 0
	for _, slot := range g.slots {
		if next == len(m.letters) {
			break
		}
		if slot.ID == g.errorSlot {
			continue
		}
		m.letters[next] = slot.ID
		next++
	}
	for ; next < len(m.letters); next++ {
		m.letters[next] = g.errorSlot
	}
	return m
}

// Slot returns the slot mapped to letter. Lowercase letters are accepted;
// anything outside A-Z reports false.
func (m AlphabetMap) Slot(letter rune) (string, bool) {
	if letter >= 'a' && letter <= 'z' {
		letter -= 'a' - 'A'
	}
	if letter < 'A' || letter > 'Z' {
		return "", false
	}
	id := m.letters[letter-'A']
	return id, id != ""
}

// ErrorSlot returns the Error Slot identifier the map was built with.
func (m AlphabetMap) ErrorSlot() string {
	return m.errorSlot
}

// IsZero reports whether the map was never built.
func (m AlphabetMap) IsZero() bool {
	return m.errorSlot == ""
}

// Letters returns the mapping keyed by single-letter strings.
func (m AlphabetMap) Letters() map[string]string {
	out := make(map[string]string, len(m.letters))
	for i, id := range m.letters {
		if id != "" {
			out[string(rune('A'+i))] = id
		}
	}
	return out
}

// LettersFor lists the letters routed to slot id, in alphabetical order.
func (m AlphabetMap) LettersFor(id string) []string {
	var out []string
	for i, mapped := range m.letters {
		if mapped == id {
			out = append(out, string(rune('A'+i)))
		}
	}
	return out
}
