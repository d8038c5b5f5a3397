package fits

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

const (
	// BlockSize is the size of every FITS header and data block.
	BlockSize = 2880
	// CardSize is the size of one header card.
	CardSize = 80

	cardsPerBlock = BlockSize / CardSize
)

var (
	// ErrNotFITS is returned when the first card is neither SIMPLE nor XTENSION.
	ErrNotFITS = errors.New("not a FITS header")
	// ErrMissingEnd is returned when a header runs to end of file without an END card.
	ErrMissingEnd = errors.New("header has no END card")
	// ErrBadDataSize is returned when the size keywords describe an impossible data unit.
	ErrBadDataSize = errors.New("invalid data unit size")
)

// Card is one 80 character header record.
type Card struct {
	Keyword string
	Value   Value
	Comment string
	// Text holds the body of commentary cards (COMMENT, HISTORY, blank keyword).
	Text string
}

// IsBlank reports whether the card is entirely blank.
func (c Card) IsBlank() bool {
	return c.Keyword == "" && strings.TrimSpace(c.Text) == ""
}

// Header is the ordered list of cards of one HDU, excluding END.
type Header struct {
	cards []Card
}

// NewHeader builds a header from cards.
func NewHeader(cards []Card) *Header {
	return &Header{cards: cards}
}

// Cards returns the cards in file order.
func (h *Header) Cards() []Card {
	return h.cards
}

// Len returns the number of cards.
func (h *Header) Len() int {
	return len(h.cards)
}

// Get returns the value of the first card named keyword. Keyword lookup is
// case-insensitive. Missing keywords yield Absent.
func (h *Header) Get(keyword string) Value {
	want := strings.ToUpper(strings.TrimSpace(keyword))
	for _, c := range h.cards {
		if c.Keyword == want {
			return c.Value
		}
	}
	return Absent()
}

// Has reports whether keyword is present, with or without a value.
func (h *Header) Has(keyword string) bool {
	want := strings.ToUpper(strings.TrimSpace(keyword))
	for _, c := range h.cards {
		if c.Keyword == want {
			return true
		}
	}
	return false
}

// readHeader reads header blocks until END. When the reader is exhausted first,
// the cards seen so far are returned together with ErrMissingEnd. io.EOF is
// returned when no bytes are left at all.
func readHeader(r io.Reader) (*Header, error) {
	block := make([]byte, BlockSize)
	h := &Header{}
	first := true

	for {
		n, err := io.ReadFull(r, block)
		if err != nil {
			if errors.Is(err, io.EOF) && first {
				return nil, io.EOF
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				h.parseCards(block[:n-n%CardSize])
				if first && (len(h.cards) == 0 || !isHDUStart(h.cards[0].Keyword)) {
					return nil, ErrNotFITS
				}
				return h, ErrMissingEnd
			}
			return nil, err
		}

		if first && !isHDUStart(strings.TrimSpace(string(block[:8]))) {
			return nil, ErrNotFITS
		}
		first = false

		if h.parseCards(block) {
			return h, nil
		}
	}
}

// parseCards appends the cards in buf and reports whether END was reached.
func (h *Header) parseCards(buf []byte) bool {
	for i := 0; i+CardSize <= len(buf); i += CardSize {
		card := string(buf[i : i+CardSize])
		keyword := strings.TrimSpace(card[:8])
		if keyword == "END" {
			return true
		}
		h.cards = append(h.cards, parseCard(keyword, card))
	}
	return false
}

func isHDUStart(keyword string) bool {
	return keyword == "SIMPLE" || keyword == "XTENSION"
}

func parseCard(keyword, card string) Card {
	c := Card{Keyword: strings.ToUpper(keyword)}
	if card[8:10] != "= " || keyword == "COMMENT" || keyword == "HISTORY" {
		c.Text = strings.TrimRight(card[8:], " ")
		return c
	}

	field := strings.TrimLeft(card[10:], " ")
	if strings.HasPrefix(field, "'") {
		s, rest := parseQuoted(field[1:])
		c.Value = Text(s)
		c.Comment = commentOf(rest)
		return c
	}

	raw := field
	if idx := strings.IndexByte(field, '/'); idx >= 0 {
		raw = field[:idx]
		c.Comment = strings.TrimSpace(field[idx+1:])
	}
	raw = strings.TrimSpace(raw)
	switch raw {
	case "":
		c.Value = Absent()
	case "T":
		c.Value = Bool(true)
	case "F":
		c.Value = Bool(false)
	default:
		c.Value = Text(raw)
	}
	return c
}

// parseQuoted reads a FITS string body (after the opening quote) where ''
// encodes a literal quote. Trailing spaces are not significant.
func parseQuoted(s string) (string, string) {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\'' {
			sb.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == '\'' {
			sb.WriteByte('\'')
			i++
			continue
		}
		return strings.TrimRight(sb.String(), " "), s[i+1:]
	}
	return strings.TrimRight(sb.String(), " "), ""
}

func commentOf(rest string) string {
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		return strings.TrimSpace(rest[idx+1:])
	}
	return ""
}

// dataSize returns the unpadded size in bytes of the data unit following h.
func (h *Header) dataSize() (int64, error) {
	bitpix, ok := h.Get("BITPIX").AsInt()
	if !ok {
		return 0, fmt.Errorf("missing or invalid BITPIX")
	}
	switch bitpix {
	case 8, 16, 32, 64, -32, -64:
	default:
		return 0, fmt.Errorf("%w: BITPIX = %d", ErrBadDataSize, bitpix)
	}
	naxis, ok := h.Get("NAXIS").AsInt()
	if !ok {
		return 0, fmt.Errorf("missing or invalid NAXIS")
	}
	if naxis < 0 || naxis > 999 {
		return 0, fmt.Errorf("%w: NAXIS = %d", ErrBadDataSize, naxis)
	}
	if naxis == 0 {
		return 0, nil
	}

	groups, _ := h.Get("GROUPS").AsBool()
	product := int64(1)
	for i := int64(1); i <= naxis; i++ {
		n, ok := h.Get(fmt.Sprintf("NAXIS%d", i)).AsInt()
		if !ok {
			return 0, fmt.Errorf("missing or invalid NAXIS%d", i)
		}
		if n < 0 {
			return 0, fmt.Errorf("%w: NAXIS%d = %d", ErrBadDataSize, i, n)
		}
		if i == 1 && n == 0 && groups {
			continue
		}
		var err error
		if product, err = mulSize(product, n); err != nil {
			return 0, err
		}
	}

	pcount := int64(0)
	if v, ok := h.Get("PCOUNT").AsInt(); ok {
		pcount = v
	}
	gcount := int64(1)
	if v, ok := h.Get("GCOUNT").AsInt(); ok {
		gcount = v
	}
	if pcount < 0 || gcount < 0 {
		return 0, fmt.Errorf("%w: PCOUNT = %d, GCOUNT = %d", ErrBadDataSize, pcount, gcount)
	}
	if pcount > math.MaxInt64-product {
		return 0, fmt.Errorf("%w: overflows int64", ErrBadDataSize)
	}

	if bitpix < 0 {
		bitpix = -bitpix
	}
	size, err := mulSize(bitpix/8, gcount)
	if err != nil {
		return 0, err
	}
	return mulSize(size, pcount+product)
}

// mulSize multiplies two non-negative sizes, failing on int64 overflow.
func mulSize(a, b int64) (int64, error) {
	if a != 0 && b > math.MaxInt64/a {
		return 0, fmt.Errorf("%w: overflows int64", ErrBadDataSize)
	}
	return a * b, nil
}

func padded(n int64) int64 {
	if rem := n % BlockSize; rem != 0 {
		return n + BlockSize - rem
	}
	return n
}
