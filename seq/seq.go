// Package seq recognizes numbered file sequences ("name.1001.exr",
// "name.%04d.exr", "name.####.exr") and lists files on disk which belong to
// them.
package seq

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/maruel/natural"

	"ovfx/common"
)

// Frame token forms, tried in order. Name part is lazy so the last token
// before extension is picked, extension may have several dots.
var tokens = []*regexp.Regexp{
	regexp.MustCompile(`^(.+?)(\.%[0-9]*d)(\.[^0-9]+)$`),
	regexp.MustCompile(`^(.+?)(\.\$F+[0-9]*)(\.[^0-9]+)$`),
	regexp.MustCompile(`^(.+?)(\.\*+)(\.[^0-9]+)$`),
	regexp.MustCompile(`^(.+?)(\.#+)(\.[^0-9]+)$`),
	regexp.MustCompile(`^(.+?)(\.[.0-9]+)(\.[^0-9]+)$`),
}

var frameVerb = regexp.MustCompile(`^%0?[0-9]*d$`)

// Sequence is a path split around its frame number. Path without frame
// token is a single file.
type Sequence struct {
	raw  string
	seq  bool
	pre  string // includes trailing dot
	post string // includes leading dot
}

// Parse splits path around frame token.
func Parse(path string) *Sequence {
	s := &Sequence{raw: path}
	for _, re := range tokens {
		if m := re.FindStringSubmatch(path); m != nil {
			s.seq, s.pre, s.post = true, m[1]+".", m[3]
			break
		}
	}
	return s
}

func (s *Sequence) IsSeq() bool { return s.seq }

// Raw returns path Sequence was created from.
func (s *Sequence) Raw() string { return s.raw }

// Format returns path with frame replaced by token, for example "%04d",
// "$F4" or "####".
func (s *Sequence) Format(token string) string {
	if !s.seq {
		return s.raw
	}
	return s.pre + token + s.post
}

// Frame returns path of a single frame, format is printf verb like "%04d".
func (s *Sequence) Frame(format string, frame int) (string, error) {
	if !s.seq {
		return s.raw, nil
	}
	if !frameVerb.MatchString(format) {
		return "", fmt.Errorf("%q is not a frame format, use %%d syntax: %w", format, common.ErrInvalidFormat)
	}
	return s.pre + fmt.Sprintf(format, frame) + s.post, nil
}

// Files lists existing files of the sequence in natural order.
func (s *Sequence) Files() ([]string, error) {
	pattern := s.raw
	if s.seq {
		pattern = s.pre + "*" + s.post
	}
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("unable to list %q: %w", pattern, err)
	}
	if s.seq {
		files = slices.DeleteFunc(files, func(f string) bool {
			return !isFrame(s.frameOf(f))
		})
	}
	slices.SortFunc(files, naturalCmp)
	return files, nil
}

// Frames returns frame numbers (as written in file names) of existing files.
func (s *Sequence) Frames() ([]string, error) {
	if !s.seq {
		return nil, nil
	}
	files, err := s.Files()
	if err != nil {
		return nil, err
	}
	frames := make([]string, 0, len(files))
	for _, f := range files {
		frames = append(frames, s.frameOf(f))
	}
	slices.SortFunc(frames, naturalCmp)
	return frames, nil
}

// Range returns first and last frame of existing files.
func (s *Sequence) Range() (string, string, error) {
	frames, err := s.Frames()
	if err != nil {
		return "", "", err
	}
	if len(frames) == 0 {
		return "", "", fmt.Errorf("frames of %q: %w", s.Format("*"), common.ErrNotFound)
	}
	return frames[0], frames[len(frames)-1], nil
}

// Describe returns path formatted with token followed by frame range of
// existing files.
func (s *Sequence) Describe(token string) (string, error) {
	if !s.seq {
		return s.raw, nil
	}
	first, last, err := s.Range()
	switch {
	case err == nil:
		return fmt.Sprintf("%s (%s-%s)", s.Format(token), first, last), nil
	case errors.Is(err, common.ErrNotFound):
		return s.Format(token) + " (No files)", nil
	default:
		return "", err
	}
}

func (s *Sequence) frameOf(file string) string {
	return strings.TrimSuffix(strings.TrimPrefix(file, s.pre), s.post)
}

func isFrame(v string) bool {
	if len(v) == 0 {
		return false
	}
	for _, r := range v {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func naturalCmp(a, b string) int {
	switch {
	case a == b:
		return 0
	case natural.Less(a, b):
		return -1
	default:
		return 1
	}
}
