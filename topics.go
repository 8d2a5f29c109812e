// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 J. Blake / mochi-co
// SPDX-FileContributor: mochi-co

package radix

import (
	"strings"
	"unicode/utf8"
)

var (
	SharePrefix = "$share" // the prefix indicating a share topic
	SysPrefix   = "$SYS"   // the prefix indicating a system info topic
)

// Topic is a normalized topic or topic filter.
type Topic struct {
	// Tokens are the levels of the topic, led by the domain marker. Empty levels
	// are replaced with EmptyToken.
	Tokens []string

	// Key is the tokens joined by the level separator.
	Key []byte
}

// String returns the topic as it was written, without the domain marker.
func (t Topic) String() string {
	return denormalize(t.Tokens)
}

// NormalizeTopic validates a topic filter, or a publish topic when forPublish is
// true, and returns its normalized form. Shared filters are not unpacked; see
// ParseSubscribeTopic.
func NormalizeTopic(topic string, forPublish bool, opts *Options) (Topic, error) {
	opts = opts.orDefaults()
	invalid := ErrInvalidFilter
	if forPublish {
		invalid = ErrInvalidTopic
	}

	if len(topic) == 0 {
		return Topic{}, invalid // [MQTT-4.7.3-1]
	}

	if len(topic) > opts.MaximumTopicLength {
		return Topic{}, ErrTopicTooLong
	}

	if !utf8.ValidString(topic) || strings.ContainsAny(topic, "\x00\x1f") {
		return Topic{}, invalid // [MQTT-4.7.3-2]
	}

	levels := strings.Count(topic, "/") + 1
	if levels > opts.MaximumTopicLevels {
		return Topic{}, ErrTooManyLevels
	}

	domain := DomainAll
	if topic[0] == '$' {
		domain = DomainSys
	}

	t := Topic{
		Tokens: make([]string, 0, levels+1),
		Key:    make([]byte, 0, len(domain)+1+len(topic)),
	}
	t.Tokens = append(t.Tokens, domain)
	t.Key = append(t.Key, domain...)

	for d := 0; ; d++ {
		particle, hasNext := isolateParticle(topic, d)
		if strings.ContainsAny(particle, "+#") {
			switch {
			case forPublish:
				return Topic{}, invalid // [MQTT-3.3.2-2]
			case particle == "#" && !hasNext:
			case particle == "+":
			default:
				return Topic{}, invalid // [MQTT-4.7.1-2] [MQTT-4.7.1-3]
			}
		}

		if particle == "" {
			particle = string(EmptyToken)
		}

		t.Tokens = append(t.Tokens, particle)
		t.Key = append(t.Key, LevelSeparator)
		t.Key = append(t.Key, particle...)

		if !hasNext {
			break
		}
	}

	return t, nil
}

// ParseSubscribeTopic validates a subscription filter and returns its normalized
// topic and, for filters of the form $share/<name>/<filter>, the share name.
func ParseSubscribeTopic(filter string, opts *Options) (Topic, string, error) {
	opts = opts.orDefaults()
	if len(filter) > opts.MaximumTopicLength {
		return Topic{}, "", ErrTopicTooLong
	}

	if !IsSharedFilter(filter) {
		t, err := NormalizeTopic(filter, false, opts)
		return t, "", err
	}

	prefix, hasNext := isolateParticle(filter, 0)
	if !hasNext {
		return Topic{}, "", ErrMalformedShare // [MQTT-4.8.2-1]
	}

	rest := filter[len(prefix)+1:]
	group, hasNext := isolateParticle(rest, 0)
	switch {
	case !hasNext, group == "":
		return Topic{}, "", ErrMalformedShare // [MQTT-4.8.2-1]
	case strings.ContainsAny(group, "+#"):
		return Topic{}, "", ErrMalformedShare // [MQTT-4.8.2-2]
	case !utf8.ValidString(group) || strings.ContainsAny(group, "\x00\x1f"):
		return Topic{}, "", ErrMalformedShare
	}

	t, err := NormalizeTopic(rest[len(group)+1:], false, opts)
	if err != nil {
		return Topic{}, "", err
	}

	return t, group, nil
}

// isolateParticle extracts a particle between d / and d+1 / without allocations.
func isolateParticle(filter string, d int) (particle string, hasNext bool) {
	var next, end int
	for i := 0; end > -1 && i <= d; i++ {
		end = strings.IndexRune(filter, '/')

		switch {
		case d > -1 && i == d && end > -1:
			hasNext = true
			particle = filter[next:end]
		case end > -1:
			hasNext = false
			filter = filter[end+1:]
		default:
			hasNext = false
			particle = filter[next:]
		}
	}

	return
}

// IsSharedFilter returns true if the filter uses the share prefix.
func IsSharedFilter(filter string) bool {
	prefix, _ := isolateParticle(filter, 0)
	return prefix == SharePrefix
}

// IsValidFilter returns true if the filter is valid under the default limits.
// Publish topics must not contain wildcards or use the share prefix.
func IsValidFilter(filter string, forPublish bool) bool {
	if forPublish {
		if IsSharedFilter(filter) {
			return false
		}

		_, err := NormalizeTopic(filter, true, nil)
		return err == nil
	}

	_, _, err := ParseSubscribeTopic(filter, nil)
	return err == nil
}

// denormalize rebuilds a topic from its tokens, dropping the domain marker.
func denormalize(tokens []string) string {
	if len(tokens) < 2 {
		return ""
	}

	var b strings.Builder
	for i, tok := range tokens[1:] {
		if i > 0 {
			b.WriteByte(LevelSeparator)
		}

		if tok != string(EmptyToken) {
			b.WriteString(tok)
		}
	}

	return b.String()
}
