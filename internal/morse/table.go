// Package morse holds the ASCII-to-Morse lookup table in the shift
// register representation spec §4.4/§9 requires: elements are read LSB
// first, each bit 0 = dot and 1 = dash, and the pattern terminates when
// the shifter equals the sentinel value 0x01, the same "end sentinel is
// the last bit still standing" trick the source uses, so the table stays
// numerically identical to the reference rather than just behaviorally
// equivalent.
package morse

// NoCode is the table entry meaning "no Morse representation for this
// character" (spec §4.4: "0x01 means 'no code'").
const NoCode = 0x01

// firstIndex/lastIndex bound the ASCII range the table covers (spec §3:
// "ASCII 33–90").
const (
	firstIndex = 33
	lastIndex  = 90
)

// dotDash is the conventional '.'/'-' encoding of each character the
// source's table also maps (cross-checked for coverage against
// other_examples' ham-radio Morse tables, e.g.
// doismellburning-samoyed/src/morse.go), converted at init time into the
// shift-register byte representation spec §9 specifies.
var dotDash = map[byte]string{
	'A': ".-", 'B': "-...", 'C': "-.-.", 'D': "-..", 'E': ".",
	'F': "..-.", 'G': "--.", 'H': "....", 'I': "..", 'J': ".---",
	'K': "-.-", 'L': ".-..", 'M': "--", 'N': "-.", 'O': "---",
	'P': ".--.", 'Q': "--.-", 'R': ".-.", 'S': "...", 'T': "-",
	'U': "..-", 'V': "...-", 'W': ".--", 'X': "-..-", 'Y': "-.--",
	'Z': "--..",
	'0': "-----", '1': ".----", '2': "..---", '3': "...--", '4': "....-",
	'5': ".....", '6': "-....", '7': "--...", '8': "---..", '9': "----.",
	'.': ".-.-.-", ',': "--..--", '?': "..--..", '/': "-..-.",
	'=': "-...-", '-': "-....-", ')': "-.--.-", '(': "-.--.",
	':': "---...", ';': "-.-.-.", '"': ".-..-.", '\'': ".----.",
	'$': "...-..-", '!': "-.-.--", '&': ".-...", '+': ".-.-.",
	'_': "..--.-", '@': ".--.-.",
}

// Table maps ASCII code (33..90) to its shift-register encoded pattern.
var Table [lastIndex - firstIndex + 1]byte

func init() {
	for i := range Table {
		Table[i] = NoCode
	}
	for ch, enc := range dotDash {
		if ch < firstIndex || ch > lastIndex {
			continue
		}
		Table[ch-firstIndex] = encode(enc)
	}
}

// encode converts a "."/"-" string into the shift-register byte: bit 0 is
// the first element, and the value equals the sentinel 0x01 once every
// element has been shifted out.
func encode(pattern string) byte {
	var reg byte = 1
	for i := len(pattern) - 1; i >= 0; i-- {
		bit := byte(0)
		if pattern[i] == '-' {
			bit = 1
		}
		reg = (reg << 1) | bit
	}
	return reg
}

// Lookup returns the shift-register pattern for an upper-case ASCII
// character, and ok=false if ch falls outside the table's range.
func Lookup(ch byte) (pattern byte, ok bool) {
	if ch < firstIndex || ch > lastIndex {
		return NoCode, false
	}
	return Table[ch-firstIndex], true
}

// ReverseLookup finds the character whose shift-register pattern matches,
// for decoding a paddle-entered collector back to ASCII for host echo
// (spec §4.4 "Collector & echo").
func ReverseLookup(pattern byte) (ch byte, ok bool) {
	for i, p := range Table {
		if p == pattern && p != NoCode {
			return byte(i + firstIndex), true
		}
	}
	return 0, false
}
