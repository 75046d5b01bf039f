// Package sdprewrite implements the SDP Rewriter Pipeline (spec §4.1): a
// chain of pure, composable SDP -> SDP transforms applied to WHIP
// offers/answers, each byte-exact outside its targeted region and
// preserving local line-ending style. Grounded on
// original_source/backend/src/api/sdp_transform.rs, reworked into
// idiomatic Go (no trailing-newline-per-line string building; explicit
// line splitting that tracks each line's own terminator).
package sdprewrite

import (
	"fmt"
	"strings"
)

// Transform is a pure SDP -> SDP function.
type Transform func(sdp string) string

// Registry maps transform names (as used by the external Apply entrypoint)
// to their implementation. Order of application is caller-supplied and
// significant.
var Registry = map[string]Transform{
	"strip_redundancy_codecs":  StripRedundancyCodecs,
	"add_goog_remb":            AddGoogREMB,
	"fix_video_bitrate_hints":  FixVideoBitrateHints,
	"strip_cvo_extension":      StripCVOExtension,
}

// Apply runs the named transforms, in order, over sdp.
func Apply(names []string, sdp string) (string, error) {
	out := sdp
	for _, name := range names {
		t, ok := Registry[name]
		if !ok {
			return "", fmt.Errorf("sdprewrite: unknown transform %q", name)
		}
		out = t(out)
	}
	return out, nil
}

// sdpLine is one line of an SDP document together with the exact
// terminator it was split on (""  for the final, unterminated line).
type sdpLine struct {
	content string
	term    string
}

// splitLines splits sdp into lines, preserving each line's own "\r\n", "\n",
// or (for a trailing partial line) "" terminator.
func splitLines(sdp string) []sdpLine {
	var lines []sdpLine
	pos := 0
	for pos < len(sdp) {
		nl := strings.IndexByte(sdp[pos:], '\n')
		if nl < 0 {
			lines = append(lines, sdpLine{content: sdp[pos:], term: ""})
			break
		}
		end := pos + nl
		if end > pos && sdp[end-1] == '\r' {
			lines = append(lines, sdpLine{content: sdp[pos : end-1], term: "\r\n"})
		} else {
			lines = append(lines, sdpLine{content: sdp[pos:end], term: "\n"})
		}
		pos = end + 1
	}
	return lines
}

func joinLines(lines []sdpLine) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l.content)
		b.WriteString(l.term)
	}
	return b.String()
}

// StripRedundancyCodecs removes payload types whose a=rtpmap: encoding
// starts with red/, rtx/, or ulpfec/ (case-insensitive), along with their
// a=rtpmap/a=fmtp/a=rtcp-fb lines, and strips the PT from m=audio/m=video
// PT lists. Returns sdp unchanged (byte-equal) if no such PT is present.
func StripRedundancyCodecs(sdp string) string {
	lines := splitLines(sdp)

	blocked := make(map[string]struct{})
	for _, l := range lines {
		rest, ok := strings.CutPrefix(l.content, "a=rtpmap:")
		if !ok {
			continue
		}
		pt, encoding, ok := strings.Cut(rest, " ")
		if !ok {
			continue
		}
		enc := strings.ToLower(encoding)
		if strings.HasPrefix(enc, "red/") || strings.HasPrefix(enc, "rtx/") || strings.HasPrefix(enc, "ulpfec/") {
			blocked[pt] = struct{}{}
		}
	}
	if len(blocked) == 0 {
		return sdp
	}

	out := make([]sdpLine, 0, len(lines))
	for _, l := range lines {
		if pt, ok := ptOf(l.content, "a=rtpmap:"); ok {
			if _, drop := blocked[pt]; drop {
				continue
			}
		}
		if pt, ok := ptOf(l.content, "a=fmtp:"); ok {
			if _, drop := blocked[pt]; drop {
				continue
			}
		}
		if pt, ok := ptOf(l.content, "a=rtcp-fb:"); ok {
			if _, drop := blocked[pt]; drop {
				continue
			}
		}
		if strings.HasPrefix(l.content, "m=audio ") || strings.HasPrefix(l.content, "m=video ") {
			l.content = stripBlockedPTs(l.content, blocked)
		}
		out = append(out, l)
	}
	return joinLines(out)
}

// ptOf extracts the leading payload-type token after prefix, e.g.
// ptOf("a=rtpmap:97 rtx/90000", "a=rtpmap:") -> ("97", true).
func ptOf(line, prefix string) (string, bool) {
	rest, ok := strings.CutPrefix(line, prefix)
	if !ok {
		return "", false
	}
	pt, _, _ := strings.Cut(rest, " ")
	return pt, true
}

// stripBlockedPTs rewrites an m=audio/m=video line's PT list, dropping any
// PT present in blocked. The PT list may become empty; the m-line stays.
func stripBlockedPTs(line string, blocked map[string]struct{}) string {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return line
	}
	head := fields[:3]
	kept := make([]string, 0, len(fields)-3)
	for _, pt := range fields[3:] {
		if _, drop := blocked[pt]; !drop {
			kept = append(kept, pt)
		}
	}
	all := append(head, kept...)
	return strings.Join(all, " ")
}

// AddGoogREMB inserts a=rtcp-fb:<PT> goog-remb immediately after the first
// a=rtcp-fb:<PT> transport-cc line in the first m=video section, preserving
// the surrounding line-ending style. No-op if absent or already present.
func AddGoogREMB(sdp string) string {
	lines := splitLines(sdp)

	// Locate first m=video line index, then scan forward for transport-cc.
	videoIdx := -1
	for i, l := range lines {
		if strings.HasPrefix(l.content, "m=video") {
			videoIdx = i
			break
		}
	}
	if videoIdx < 0 {
		return sdp
	}

	tcIdx := -1
	var pt string
	for i := videoIdx; i < len(lines); i++ {
		rest, ok := strings.CutPrefix(lines[i].content, "a=rtcp-fb:")
		if !ok {
			continue
		}
		p, fb, ok := strings.Cut(rest, " ")
		if !ok || fb != "transport-cc" {
			continue
		}
		tcIdx = i
		pt = p
		break
	}
	if tcIdx < 0 {
		return sdp
	}

	rembLine := "a=rtcp-fb:" + pt + " goog-remb"
	if tcIdx+1 < len(lines) && lines[tcIdx+1].content == rembLine {
		return sdp
	}
	if strings.Contains(sdp, rembLine) {
		return sdp
	}

	term := lines[tcIdx].term
	if term == "" {
		term = "\n"
	}
	inserted := make([]sdpLine, 0, len(lines)+1)
	inserted = append(inserted, lines[:tcIdx+1]...)
	inserted = append(inserted, sdpLine{content: rembLine, term: term})
	inserted = append(inserted, lines[tcIdx+1:]...)
	return joinLines(inserted)
}

const (
	defaultMinBitrate   = "1000"
	defaultStartBitrate = "2000"
	defaultMaxBitrate   = "6000"
)

// FixVideoBitrateHints moves standalone a=x-google-{min,start,max}-bitrate
// lines into the first a=fmtp: line of the video section, defaulting any
// missing value, then removes the standalone lines. If the fmtp line
// already carries x-google-start-bitrate, hints are not re-appended but the
// standalone lines are still removed.
func FixVideoBitrateHints(sdp string) string {
	if !strings.Contains(sdp, "m=video") {
		return sdp
	}
	lines := splitLines(sdp)

	minV, startV, maxV := defaultMinBitrate, defaultStartBitrate, defaultMaxBitrate
	for _, l := range lines {
		trimmed := strings.TrimSpace(l.content)
		if v, ok := strings.CutPrefix(trimmed, "a=x-google-min-bitrate:"); ok {
			minV = strings.TrimSpace(v)
		} else if v, ok := strings.CutPrefix(trimmed, "a=x-google-start-bitrate:"); ok {
			startV = strings.TrimSpace(v)
		} else if v, ok := strings.CutPrefix(trimmed, "a=x-google-max-bitrate:"); ok {
			maxV = strings.TrimSpace(v)
		}
	}
	hints := fmt.Sprintf(";x-google-min-bitrate=%s;x-google-start-bitrate=%s;x-google-max-bitrate=%s", minV, startV, maxV)

	videoIdx := -1
	for i, l := range lines {
		if strings.HasPrefix(l.content, "m=video") {
			videoIdx = i
			break
		}
	}
	if videoIdx < 0 {
		return sdp
	}

	fmtpIdx := -1
	for i := videoIdx; i < len(lines); i++ {
		if strings.HasPrefix(lines[i].content, "a=fmtp:") {
			fmtpIdx = i
			break
		}
	}
	if fmtpIdx < 0 {
		return removeStandaloneXGoogle(sdp)
	}

	if !strings.Contains(lines[fmtpIdx].content, "x-google-start-bitrate") {
		lines[fmtpIdx].content += hints
	}
	return removeStandaloneXGoogle(joinLines(lines))
}

func removeStandaloneXGoogle(sdp string) string {
	lines := splitLines(sdp)
	out := make([]sdpLine, 0, len(lines))
	for _, l := range lines {
		trimmed := strings.TrimSpace(l.content)
		if strings.HasPrefix(trimmed, "a=x-google-min-bitrate:") ||
			strings.HasPrefix(trimmed, "a=x-google-start-bitrate:") ||
			strings.HasPrefix(trimmed, "a=x-google-max-bitrate:") {
			continue
		}
		out = append(out, l)
	}
	return joinLines(out)
}

// StripCVOExtension removes every line containing
// urn:3gpp:video-orientation, leaving every other line byte-equal.
func StripCVOExtension(sdp string) string {
	lines := splitLines(sdp)
	out := make([]sdpLine, 0, len(lines))
	for _, l := range lines {
		if strings.Contains(l.content, "urn:3gpp:video-orientation") {
			continue
		}
		out = append(out, l)
	}
	return joinLines(out)
}
