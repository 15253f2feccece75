package mtk

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/socflash/internal/logging"
	"github.com/muurk/socflash/internal/observer"
	"github.com/muurk/socflash/internal/transport"
)

// compatRule maps a chip name or series keyword to the filename substrings a
// matching download agent must carry. Rules are ordered most-specific first;
// the first key that matches the detected chip name wins.
type compatRule struct {
	key      string
	keywords []string
}

var compatRules = []compatRule{
	{"MT6785", []string{"MT6785", "Helio_G90", "HelioG90"}},
	{"MT6771", []string{"MT6771", "Helio_P60", "HelioP60"}},
	{"MT6768", []string{"MT6768", "Helio_G85", "HelioG85", "Helio_P65"}},
	{"MT6765", []string{"MT6765", "Helio_P35", "HelioP35"}},
	{"MT6762", []string{"MT6762", "Helio_P22", "HelioP22"}},
	{"MT6761", []string{"MT6761", "Helio_A22", "HelioA22"}},
	{"MT6739", []string{"MT6739"}},
	{"MT6580", []string{"MT6580"}},
	{"MT6873", []string{"MT6873", "Dimensity_800", "Dimensity800"}},
	{"MT6893", []string{"MT6893", "Dimensity_1200", "Dimensity1200"}},
	{"MT6833", []string{"MT6833", "Dimensity_700", "Dimensity700"}},
	{"MT8183", []string{"MT8183", "Kompanio_500", "Kompanio500"}},
	// Series fallbacks, matched only after every chip-specific rule.
	{"Helio", []string{"Helio"}},
	{"Dimensity", []string{"Dimensity"}},
	{"Kompanio", []string{"Kompanio"}},
}

// infoProbe is one device-info query command.
type infoProbe struct {
	key     string
	command []byte
}

// infoProbeTables are tried in order: the generic table first, then per-OEM
// variants observed on branded firmware.
var infoProbeTables = []struct {
	name   string
	probes []infoProbe
}{
	{"generic", []infoProbe{
		{"model", []byte{0xDA, 0x01}},
		{"firmware", []byte{0xDA, 0x02}},
		{"serial", []byte{0xDA, 0x03}},
	}},
	{"oem-a", []infoProbe{
		{"model", []byte{0xDB, 0x10}},
		{"firmware", []byte{0xDB, 0x11}},
	}},
	{"oem-b", []infoProbe{
		{"model", []byte{0xDC, 0x21}},
		{"serial", []byte{0xDC, 0x23}},
	}},
}

const infoProbeTimeout = 1500 * time.Millisecond

// DeviceInfo is what the device-info query managed to retrieve.
type DeviceInfo struct {
	Values map[string]string
}

// ProcessResult summarizes one full device session.
type ProcessResult struct {
	Detection    DetectionResult
	Compatible   bool
	CompatNote   string
	DAUploaded   bool
	Info         DeviceInfo
	InfoComplete bool
}

// Processor sequences a complete MediaTek session: handshake, chip
// identification, agent compatibility check and upload, device-info query.
type Processor struct {
	transport transport.Transport
	obs       observer.Observer

	// DA is the agent to upload. Nil skips the upload with a warning.
	DA *DAFile

	// DAAddress overrides the agent load address when nonzero.
	DAAddress uint32
}

// NewProcessor creates a processor over an already-connected transport.
func NewProcessor(t transport.Transport, obs observer.Observer) *Processor {
	if obs == nil {
		obs = observer.Nop{}
	}
	return &Processor{transport: t, obs: obs}
}

// Run executes the full session. Protocol failures in the handshake or
// upload abort; per-probe device-info failures do not.
func (p *Processor) Run(ctx context.Context) (*ProcessResult, error) {
	p.obs.Busy(true)
	defer p.obs.Busy(false)

	result := &ProcessResult{}

	p.obs.Log(observer.LevelInfo, "Starting boot-ROM handshake")
	if err := Handshake(ctx, p.transport); err != nil {
		p.obs.ReportError("Handshake failed", err.Error())
		return result, err
	}
	p.obs.Progress(10)

	p.obs.Log(observer.LevelInfo, "Identifying chip")
	result.Detection = NewIdentifier(p.transport).Identify(ctx)
	p.obs.Log(observer.LevelInfo, "Detected: "+result.Detection.ChipName)
	if result.Detection.Notes != "" {
		p.obs.Log(observer.LevelDebug, result.Detection.Notes)
	}
	p.obs.Progress(25)

	if p.DA == nil {
		result.Compatible = true
		result.CompatNote = "no download agent configured"
		p.obs.Log(observer.LevelWarn, "No download agent configured, skipping upload")
	} else {
		result.Compatible, result.CompatNote = CheckDACompatibility(&result.Detection, p.DA.Path)
		if !result.Compatible {
			p.obs.Log(observer.LevelWarn,
				"Agent incompatible with detected chip, skipping upload: "+result.CompatNote)
		} else {
			if result.CompatNote != "" {
				p.obs.Log(observer.LevelWarn, result.CompatNote)
			}
			uploader := NewUploader(p.transport, p.obs)
			uploader.Address = p.DAAddress
			uploader.ProgressFloor = 25
			uploader.ProgressCeil = 80
			if err := uploader.Upload(ctx, p.DA); err != nil {
				p.obs.ReportError("Agent upload failed", err.Error())
				return result, err
			}
			result.DAUploaded = true
			p.obs.Log(observer.LevelInfo, "Download agent running")
		}
	}
	p.obs.Progress(80)

	info, err := p.queryDeviceInfo(ctx)
	result.Info = info
	result.InfoComplete = err == nil
	if err != nil {
		// Informational only, the session itself succeeded.
		p.obs.Log(observer.LevelWarn, "Device info query: "+err.Error())
	}
	p.obs.Progress(100)
	return result, nil
}

// queryDeviceInfo walks the probe tables collecting ASCII values. A value
// seen earlier is overwritten if a later probe disagrees, with a log line.
// Success requires at least one meaningful value.
func (p *Processor) queryDeviceInfo(ctx context.Context) (DeviceInfo, error) {
	info := DeviceInfo{Values: make(map[string]string)}
	for _, table := range infoProbeTables {
		for _, probe := range table.probes {
			if err := ctx.Err(); err != nil {
				return info, newError(ErrTypeCancelled, "device info query cancelled", err)
			}
			value, err := p.runInfoProbe(ctx, probe.command)
			if err != nil {
				logging.Debug("Info probe failed",
					zap.String("table", table.name),
					zap.String("key", probe.key),
					zap.Error(err),
				)
				continue
			}
			if value == "" {
				continue
			}
			if prior, ok := info.Values[probe.key]; ok && prior != value {
				logging.Warn("Info probe disagreement, keeping newer value",
					zap.String("key", probe.key),
					zap.String("prior", prior),
					zap.String("new", value),
				)
			}
			info.Values[probe.key] = value
		}
	}
	if len(info.Values) == 0 {
		return info, newError(ErrTypeProtocol, "no device information retrieved", nil)
	}
	return info, nil
}

func (p *Processor) runInfoProbe(ctx context.Context, command []byte) (string, error) {
	if err := p.transport.Write(ctx, command); err != nil {
		return "", err
	}
	response, err := p.transport.Read(ctx, infoProbeTimeout)
	if err != nil {
		return "", err
	}
	return cleanInfoValue(response), nil
}

// cleanInfoValue decodes a probe response as trimmed printable ASCII,
// discarding error-looking or garbage replies.
func cleanInfoValue(response []byte) string {
	trimmed := strings.TrimFunc(string(response), func(r rune) bool {
		return r < 0x20 || r > 0x7E
	})
	if trimmed == "" {
		return ""
	}
	for _, r := range trimmed {
		if r < 0x20 || r > 0x7E {
			return ""
		}
	}
	lower := strings.ToLower(trimmed)
	if strings.Contains(lower, "error") || strings.Contains(lower, "fail") {
		return ""
	}
	return trimmed
}

// CheckDACompatibility decides whether an agent file can be sent to the
// detected chip. The note is non-empty when compatibility could not be
// positively verified.
func CheckDACompatibility(detection *DetectionResult, daPath string) (bool, string) {
	chip := detection.ChipName
	filename := filepath.Base(daPath)

	if rule, ok := findCompatRule(chip); ok && !detection.Unknown() {
		if filenameMatchesAny(filename, rule.keywords) {
			return true, ""
		}
		return false, fmt.Sprintf("agent %q does not match chip %s (expected one of %s)",
			filename, chip, strings.Join(rule.keywords, ", "))
	}

	if detection.Unknown() {
		// Fall back to the series hinted in the synthesized name, then to
		// the literal hex code.
		for _, kw := range seriesKeywords {
			if strings.Contains(chip, kw) {
				if filenameMatchesAny(filename, []string{kw}) {
					return true, fmt.Sprintf("chip unidentified, matched on %s series only", kw)
				}
				return false, fmt.Sprintf("agent %q does not match hinted %s series", filename, kw)
			}
		}
		if detection.HWCode != 0 {
			code := fmt.Sprintf("0x%04X", detection.HWCode)
			if strings.Contains(strings.ToLower(filename), strings.ToLower(code)) {
				return true, fmt.Sprintf("chip unidentified, matched on hardware code %s only", code)
			}
		}
	}

	return true, fmt.Sprintf("no compatibility rule for %s, proceeding unverified", chip)
}

func findCompatRule(chip string) (*compatRule, bool) {
	lowered := strings.ToLower(chip)
	for i := range compatRules {
		key := strings.ToLower(compatRules[i].key)
		if strings.Contains(lowered, key) || strings.Contains(key, lowered) {
			return &compatRules[i], true
		}
	}
	return nil, false
}

func filenameMatchesAny(filename string, keywords []string) bool {
	lowered := strings.ToLower(filename)
	for _, kw := range keywords {
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
