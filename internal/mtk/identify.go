package mtk

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/socflash/internal/logging"
	"github.com/muurk/socflash/internal/transport"
)

// BootRomGenericName is reported when a probe proves the device is in boot-ROM
// mode without revealing which chip it is.
const BootRomGenericName = "MediaTek Boot ROM"

// UnknownPrefix prefixes chip names built from a hardware code with no table
// entry.
const UnknownPrefix = "Unknown_"

// seriesKeywords are the marketing-series strings scanned for in probe
// responses and chip names.
var seriesKeywords = []string{"Helio", "Dimensity", "Kompanio"}

// chipNames maps boot-ROM hardware codes to chip names. The code arrives as
// the first two response bytes, little-endian.
var chipNames = map[uint16]string{
	// Feature-phone and early smartphone era
	0x6260: "MT6260",
	0x6261: "MT6261",
	0x6268: "MT6268",
	0x6276: "MT6276",
	0x6516: "MT6516",
	0x6571: "MT6571",
	0x6572: "MT6572",
	0x6575: "MT6575",
	0x6577: "MT6577",
	0x6580: "MT6580",
	0x6582: "MT6582",
	0x6583: "MT6583",
	0x6589: "MT6589",
	0x6592: "MT6592",
	0x6595: "MT6595",
	0x6752: "MT6752",
	0x6795: "MT6795 (Helio X10)",

	// 64-bit smartphone parts reporting short hardware codes
	0x0279: "MT6797 (Helio X20)",
	0x0321: "MT6735",
	0x0326: "MT6750",
	0x0335: "MT6737M",
	0x0337: "MT6737T",
	0x0387: "MT6768 sub-variant",
	0x0507: "MT6755 (Helio P10)",
	0x0551: "MT6757 (Helio P20)",
	0x0562: "MT2701",
	0x0601: "MT7622",
	0x0633: "MT6570",
	0x0688: "MT6758 (Helio P30)",
	0x0690: "MT6763 (Helio P23)",
	0x0699: "MT6739",
	0x0707: "MT6768 (Helio G85)",
	0x0717: "MT6761 (Helio A22)",
	0x0725: "MT6779 (Helio P90)",
	0x0766: "MT6765 (Helio P35)",
	0x0788: "MT6771 (Helio P60)",
	0x0813: "MT6785 (Helio G90)",
	0x0816: "MT6759 (Helio P30 variant)",

	// 5G-era Dimensity parts
	0x0886: "MT6873 (Dimensity 800)",
	0x0908: "MT6885 (Dimensity 1000)",
	0x0930: "MT6853T (Dimensity 800U)",
	0x0950: "MT6893 (Dimensity 1200)",
	0x0959: "MT6877 (Dimensity 900)",
	0x0989: "MT6833 (Dimensity 700)",
	0x0996: "MT6853 (Dimensity 720)",
	0x1066: "MT6781 (Helio G96)",
	0x1172: "MT6895 (Dimensity 8100)",
	0x1208: "MT6983 (Dimensity 9000)",
	0x1229: "MT6886 (Dimensity 7200)",

	// Tablet, TV, and Chromebook parts
	0x8127: "MT8127",
	0x8135: "MT8135",
	0x8163: "MT8163",
	0x8167: "MT8167",
	0x8168: "MT8168",
	0x8173: "MT8173",
	0x8176: "MT8176",
	0x8183: "MT8183 (Kompanio 500)",
	0x8185: "MT8185",
	0x8192: "MT8192 (Kompanio 820)",
	0x8195: "MT8195 (Kompanio 1200)",
	0x8512: "MT8512",
	0x8516: "MT8516",
	0x8518: "MT8518",
	0x8532: "MT8532",
	0x8695: "MT8695",
	0x8696: "MT8696",
	0x8735: "MT8735",
	0x8765: "MT8765",
	0x8766: "MT8766",
	0x8768: "MT8768",
	0x8786: "MT8786",
	0x8788: "MT8788",
	0x8797: "MT8797",

	// Connectivity and router parts occasionally seen in BROM mode
	0x7622: "MT7622",
	0x7623: "MT7623",
	0x7629: "MT7629",
	0x7986: "MT7986",
	0x7981: "MT7981",

	// Wearable parts
	0x2601: "MT2601",
	0x2625: "MT2625",
	0x2731: "MT2731",
	0x3967: "MT3967",
	0x6739: "MT6739 (alt code)",
	0x6763: "MT6763 (alt code)",
	0x6879: "MT6879 (Dimensity 1080)",
	0x6983: "MT6983 (alt code)",
}

// DetectionResult is one probe strategy's opinion about the attached chip.
type DetectionResult struct {
	ChipName    string // Possibly "Unknown_0x%04X"
	HWCode      uint16 // Raw hardware code (zero when unavailable)
	ResponseHex string // Full raw response, hex-encoded
	Probe       string // Which strategy produced this result
	Verified    bool   // Strategy is confident in the interpretation
	Notes       string // Optional human-readable annotation
	Err         error  // Probe-level failure, if any
}

// Unknown reports whether the result carries no table-backed chip name.
func (r *DetectionResult) Unknown() bool {
	return strings.HasPrefix(r.ChipName, UnknownPrefix)
}

// Generic reports whether the result only proves boot-ROM mode.
func (r *DetectionResult) Generic() bool {
	return r.ChipName == BootRomGenericName
}

// HasSeriesHint reports whether the name or notes mention a known series.
func (r *DetectionResult) HasSeriesHint() bool {
	return containsSeriesKeyword(r.ChipName) || containsSeriesKeyword(r.Notes)
}

func (r *DetectionResult) cancelled() bool {
	return r.Err != nil && IsCancelled(r.Err)
}

// Identifier probes a device in boot-ROM mode and arbitrates among the
// competing interpretations of its responses.
type Identifier struct {
	transport transport.Transport

	// ReadTimeout bounds each probe's response wait. Zero means 2s.
	ReadTimeout time.Duration
}

// NewIdentifier creates an identifier over an already-connected transport.
func NewIdentifier(t transport.Transport) *Identifier {
	return &Identifier{transport: t}
}

func (i *Identifier) readTimeout() time.Duration {
	if i.ReadTimeout == 0 {
		return 2 * time.Second
	}
	return i.ReadTimeout
}

// Identify runs all three probe strategies and arbitrates their results.
func (i *Identifier) Identify(ctx context.Context) DetectionResult {
	results := []DetectionResult{
		i.probeStandard(ctx),
		i.probeExtended(ctx),
		i.probeBootRom(ctx),
	}
	for _, r := range results {
		logging.Debug("Chip probe result",
			zap.String("probe", r.Probe),
			zap.String("chip", r.ChipName),
			zap.Bool("verified", r.Verified),
			zap.String("response", r.ResponseHex),
			zap.Error(r.Err),
		)
	}
	return Arbitrate(results)
}

// probeStandard sends the classic hardware-code query.
func (i *Identifier) probeStandard(ctx context.Context) DetectionResult {
	return i.codeProbe(ctx, "standard", []byte{0xFD, 0xD0})
}

// probeExtended tries vendor-extended queries in order, settling on the
// first command that yields at least two response bytes.
func (i *Identifier) probeExtended(ctx context.Context) DetectionResult {
	commands := []struct {
		name  string
		bytes []byte
	}{
		{"DA_Identification", []byte{0xDA, 0xDA}},
		{"Secure_Chip_ID", []byte{0xA5, 0x5A}},
		{"Factory_Mode", []byte{0xF0, 0x0F}},
	}
	var last DetectionResult
	for _, cmd := range commands {
		result := i.codeProbe(ctx, "extended/"+cmd.name, cmd.bytes)
		if result.Err == nil {
			return result
		}
		last = result
		if result.cancelled() {
			break
		}
	}
	return last
}

// probeBootRom sends the ASCII identification request. Boot ROMs and running
// download agents answer with a recognizable banner; older ROMs answer with
// a bare hardware code.
func (i *Identifier) probeBootRom(ctx context.Context) DetectionResult {
	result := DetectionResult{Probe: "bootrom"}
	response, err := i.exchange(ctx, []byte("MTkl"))
	if err != nil {
		result.Err = err
		return result
	}
	result.ResponseHex = hex.EncodeToString(response)

	banner := string(response)
	if strings.Contains(banner, "USB_DOWNLOAD_AGENT") || strings.Contains(banner, "BROM") {
		result.ChipName = BootRomGenericName
		result.Verified = true
		result.Notes = "identification banner received"
		return result
	}

	if len(response) < 2 {
		result.Err = newError(ErrTypeProtocol,
			fmt.Sprintf("bootrom probe returned %d bytes", len(response)), nil)
		return result
	}
	code := binary.LittleEndian.Uint16(response[:2])
	result.HWCode = code
	result.ChipName, result.Verified, result.Notes = lookupHWCode(code, response[2:])
	return result
}

// codeProbe runs one raw probe command and interprets the first two response
// bytes as a little-endian hardware code.
func (i *Identifier) codeProbe(ctx context.Context, probe string, command []byte) DetectionResult {
	result := DetectionResult{Probe: probe}
	response, err := i.exchange(ctx, command)
	if err != nil {
		result.Err = err
		return result
	}
	result.ResponseHex = hex.EncodeToString(response)
	if len(response) < 2 {
		result.Err = newError(ErrTypeProtocol,
			fmt.Sprintf("probe %s returned %d bytes", probe, len(response)), nil)
		return result
	}
	code := binary.LittleEndian.Uint16(response[:2])
	result.HWCode = code
	result.ChipName, result.Verified, result.Notes = lookupHWCode(code, response[2:])
	return result
}

func (i *Identifier) exchange(ctx context.Context, command []byte) ([]byte, error) {
	if err := i.transport.Write(ctx, command); err != nil {
		return nil, newError(ErrTypeConnection, "probe write failed", err)
	}
	response, err := i.transport.Read(ctx, i.readTimeout())
	if err != nil {
		return nil, newError(ErrTypeConnection, "probe read failed", err)
	}
	if len(response) == 0 {
		return nil, newError(ErrTypeTimeout, "no probe response", nil)
	}
	return response, nil
}

// lookupHWCode resolves a hardware code against the table, handling the two
// undocumented codes and deriving a series hint for unmatched codes.
func lookupHWCode(code uint16, trailing []byte) (name string, verified bool, notes string) {
	// Two codes observed in the field that no public document lists; both
	// map onto known silicon revisions.
	switch code {
	case 0x0930:
		return "MT6853T (Dimensity 800U)", true,
			"undocumented code, reported by Dimensity 800U engineering units"
	case 0x1229:
		return "MT6886 (Dimensity 7200)", true,
			"undocumented code, matches Dimensity 7200 sampling silicon"
	}

	if name, ok := chipNames[code]; ok {
		return name, true, ""
	}

	name = fmt.Sprintf("%s0x%04X", UnknownPrefix, code)
	if hint := scanSeriesHint(trailing); hint != "" {
		notes = "series hint: " + hint
		name = fmt.Sprintf("%s (%s?)", name, hint)
	}
	return name, false, notes
}

// scanSeriesHint looks for a marketing-series string in raw response bytes.
func scanSeriesHint(data []byte) string {
	ascii := string(data)
	for _, kw := range seriesKeywords {
		if strings.Contains(ascii, kw) {
			return kw
		}
	}
	return ""
}

func containsSeriesKeyword(s string) bool {
	for _, kw := range seriesKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Arbitrate reduces multiple probe results to one, deterministically.
//
// Priority over the non-cancelled results:
//  1. a verified result with a real chip name (neither unknown nor generic)
//  2. the best real-named result, ranked by verified flag, then series
//     keyword, then response length, then absence of error
//  3. a verified generic boot-ROM result
//  4. the best unknown result that carries a series hint, ranked by response
//     length then absence of error
//  5. the overall best-of-rest by the same ranking, annotated as uncertain
func Arbitrate(results []DetectionResult) DetectionResult {
	candidates := make([]DetectionResult, 0, len(results))
	for _, r := range results {
		if r.cancelled() {
			continue
		}
		candidates = append(candidates, r)
	}
	if len(candidates) == 0 {
		return DetectionResult{
			ChipName: "Unknown, all attempts failed",
			Probe:    "arbitration",
			Notes:    "every probe was cancelled or never ran",
		}
	}

	// Tier 1: verified, real name.
	for _, r := range candidates {
		if r.Verified && r.ChipName != "" && !r.Unknown() && !r.Generic() {
			return r
		}
	}

	// Tier 2: best real-named result.
	if best, ok := pickBest(candidates, func(r *DetectionResult) bool {
		return r.ChipName != "" && !r.Unknown() && !r.Generic()
	}); ok {
		return best
	}

	// Tier 3: verified generic boot-ROM result.
	for _, r := range candidates {
		if r.Verified && r.Generic() {
			return r
		}
	}

	// Tier 4: unknown with a series hint.
	if best, ok := pickBest(candidates, func(r *DetectionResult) bool {
		return r.Unknown() && r.HasSeriesHint()
	}); ok {
		return best
	}

	// Tier 5: best of whatever is left.
	best, _ := pickBest(candidates, func(r *DetectionResult) bool { return true })
	if best.ChipName == "" {
		best.ChipName = "Unknown, all attempts failed"
	}
	if best.Notes != "" {
		best.Notes += "; "
	}
	best.Notes += "low confidence result"
	return best
}

// pickBest returns the best result among those passing the filter, using the
// shared ranking.
func pickBest(results []DetectionResult, filter func(*DetectionResult) bool) (DetectionResult, bool) {
	var best DetectionResult
	found := false
	for _, r := range results {
		if !filter(&r) {
			continue
		}
		if !found || rankLess(&best, &r) {
			best = r
			found = true
		}
	}
	return best, found
}

// rankLess reports whether b outranks a.
func rankLess(a, b *DetectionResult) bool {
	if a.Verified != b.Verified {
		return b.Verified
	}
	aSeries, bSeries := a.HasSeriesHint(), b.HasSeriesHint()
	if aSeries != bSeries {
		return bSeries
	}
	if len(a.ResponseHex) != len(b.ResponseHex) {
		return len(b.ResponseHex) > len(a.ResponseHex)
	}
	if (a.Err == nil) != (b.Err == nil) {
		return b.Err == nil
	}
	return false
}
