package textutil

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxRangePages bounds how many page numbers a single range string may expand to
const MaxRangePages = 1 << 16

// ParseError reports a malformed page range string
type ParseError struct {
	Input  string
	Token  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid page range %q: %s (%q)", e.Input, e.Reason, e.Token)
}

// ParseRange expands a page selection such as "1,2-4,6" into [1 2 3 4 6].
// Tokens are comma separated integers or inclusive a-b ranges, surrounding
// whitespace and empty tokens are ignored. Order is preserved and duplicates
// are kept.
func ParseRange(text string) ([]int, error) {
	var pages []int
	for _, raw := range strings.Split(text, ",") {
		token := strings.TrimSpace(raw)
		if token == "" {
			continue
		}

		bounds := strings.Split(token, "-")
		switch len(bounds) {
		case 1:
			page, err := parsePageNumber(text, token, token)
			if err != nil {
				return nil, err
			}
			pages = append(pages, page)
		case 2:
			first, err := parsePageNumber(text, token, bounds[0])
			if err != nil {
				return nil, err
			}
			last, err := parsePageNumber(text, token, bounds[1])
			if err != nil {
				return nil, err
			}
			if first > last {
				return nil, &ParseError{Input: text, Token: token, Reason: "range start is after range end"}
			}
			// both bounds are positive, so last-first cannot overflow
			if last-first >= MaxRangePages-len(pages) {
				return nil, &ParseError{Input: text, Token: token, Reason: fmt.Sprintf("selection exceeds %d pages", MaxRangePages)}
			}
			for i := 0; i <= last-first; i++ {
				pages = append(pages, first+i)
			}
		default:
			return nil, &ParseError{Input: text, Token: token, Reason: "range has more than one hyphen"}
		}

		if len(pages) > MaxRangePages {
			return nil, &ParseError{Input: text, Token: token, Reason: fmt.Sprintf("selection exceeds %d pages", MaxRangePages)}
		}
	}
	return pages, nil
}

func parsePageNumber(input, token, field string) (int, error) {
	page, err := strconv.Atoi(strings.TrimSpace(field))
	if err != nil {
		return 0, &ParseError{Input: input, Token: token, Reason: "not a number"}
	}
	if page < 1 {
		return 0, &ParseError{Input: input, Token: token, Reason: "page numbers start at 1"}
	}
	return page, nil
}
