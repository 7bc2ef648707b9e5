// Package region classifies the host as CN or INTERNATIONAL from its
// locale so install commands can use mirror-appropriate sources. Results
// are cached in the key-value store for a fixed TTL.
package region

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/quantmind-br/depctl/internal/core"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
)

// DefaultTTL is how long a cached detection stays valid
const DefaultTTL = 7 * 24 * time.Hour

var chineseLanguage = language.MustParseBase("zh")

// chineseRegions are the locale regions that select the CN mirrors
var chineseRegions = map[string]struct{}{
	"CN": {},
	"TW": {},
	"HK": {},
	"SG": {},
}

// LocaleFunc returns the host's active locale tag (e.g. "zh_CN.UTF-8")
type LocaleFunc func() (string, error)

// Detector detects and caches the host region
type Detector struct {
	store    core.KVStore
	locale   LocaleFunc
	now      func() time.Time
	ttl      time.Duration
	override core.Region
	log      *zerolog.Logger
}

// Option configures a Detector
type Option func(*Detector)

// WithLocale replaces the host locale lookup
func WithLocale(fn LocaleFunc) Option {
	return func(d *Detector) { d.locale = fn }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// WithTTL sets the cache lifetime. Non-positive values keep the default.
func WithTTL(ttl time.Duration) Option {
	return func(d *Detector) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithOverride forces a region instead of reading the locale or the cache.
// Unknown values are ignored.
func WithOverride(region string) Option {
	return func(d *Detector) {
		if r, ok := core.ParseRegion(strings.ToUpper(strings.TrimSpace(region))); ok {
			d.override = r
		}
	}
}

// NewDetector creates a Detector backed by store
func NewDetector(store core.KVStore, log *zerolog.Logger, opts ...Option) *Detector {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	d := &Detector{
		store:  store,
		locale: systemLocale,
		now:    time.Now,
		ttl:    DefaultTTL,
		log:    log,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect classifies the current locale. Any failure yields INTERNATIONAL.
func (d *Detector) Detect() core.Region {
	if d.override != "" {
		return d.override
	}

	tag, err := d.locale()
	if err != nil {
		d.log.Warn().Err(err).Msg("failed to read locale, defaulting to INTERNATIONAL")
		return core.RegionInternational
	}

	d.log.Debug().Str("locale", tag).Msg("system locale detected")
	return ClassifyLocale(tag)
}

// ClassifyLocale maps a POSIX or BCP 47 locale string onto a Region
func ClassifyLocale(raw string) core.Region {
	tag, err := language.Parse(normalizeLocale(raw))
	if err != nil {
		return core.RegionInternational
	}

	base, _ := tag.Base()
	if base != chineseLanguage {
		return core.RegionInternational
	}

	region, conf := tag.Region()
	if conf != language.Exact {
		return core.RegionInternational
	}
	if _, ok := chineseRegions[region.String()]; ok {
		return core.RegionCN
	}
	return core.RegionInternational
}

// normalizeLocale turns "zh_CN.UTF-8@euro" into "zh-CN"
func normalizeLocale(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}
	return strings.ReplaceAll(s, "_", "-")
}

// DetectWithCache returns a cached detection younger than the TTL, or
// detects afresh and caches the result. Storage failures are logged and
// never block detection.
func (d *Detector) DetectWithCache(ctx context.Context) core.RegionDetection {
	if d.override != "" {
		return core.RegionDetection{Region: d.override, DetectedAt: d.now(), Method: core.DetectionOverride}
	}
	if cached, ok := d.cached(ctx); ok {
		d.log.Debug().Str("region", string(cached.Region)).Msg("using cached region detection")
		return cached
	}

	result := core.RegionDetection{
		Region:     d.Detect(),
		DetectedAt: d.now(),
		Method:     core.DetectionLocale,
	}
	d.save(ctx, result)

	d.log.Info().Str("region", string(result.Region)).Msg("region detected")
	return result
}

// Redetect clears the cache and detects again
func (d *Detector) Redetect(ctx context.Context) core.RegionDetection {
	d.ClearCache(ctx)
	return d.DetectWithCache(ctx)
}

// ClearCache removes the cached detection
func (d *Detector) ClearCache(ctx context.Context) {
	if d.store == nil {
		return
	}
	if err := d.store.Delete(ctx, core.KeyRegionDetection); err != nil {
		d.log.Warn().Err(err).Msg("failed to clear region cache")
	}
}

// Status returns the cached detection without triggering a new one.
// found is false when there is no valid cache entry.
func (d *Detector) Status(ctx context.Context) (result core.RegionDetection, found bool) {
	return d.cached(ctx)
}

func (d *Detector) cached(ctx context.Context) (core.RegionDetection, bool) {
	if d.store == nil {
		return core.RegionDetection{}, false
	}

	raw, found, err := d.store.Get(ctx, core.KeyRegionDetection)
	if err != nil {
		d.log.Warn().Err(err).Msg("failed to read region cache")
		return core.RegionDetection{}, false
	}
	if !found {
		return core.RegionDetection{}, false
	}

	var cached core.RegionDetection
	if err := json.Unmarshal(raw, &cached); err != nil {
		d.log.Warn().Err(err).Msg("discarding unreadable region cache")
		return core.RegionDetection{}, false
	}
	if _, ok := core.ParseRegion(string(cached.Region)); !ok {
		return core.RegionDetection{}, false
	}

	age := d.now().Sub(cached.DetectedAt)
	if age < 0 || age > d.ttl {
		d.log.Debug().Dur("age", age).Msg("region cache expired")
		return core.RegionDetection{}, false
	}

	cached.Method = core.DetectionCache
	return cached, true
}

func (d *Detector) save(ctx context.Context, result core.RegionDetection) {
	if d.store == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		d.log.Warn().Err(err).Msg("failed to encode region detection")
		return
	}
	if err := d.store.Set(ctx, core.KeyRegionDetection, raw); err != nil {
		d.log.Warn().Err(err).Msg("failed to cache region detection")
	}
}

// Mirror describes the package registry matching a region
type Mirror struct {
	Name string
	URL  string
}

// NpmMirror returns the npm registry used for region
func NpmMirror(region core.Region) Mirror {
	if region == core.RegionCN {
		return Mirror{Name: "npmmirror", URL: "https://registry.npmmirror.com"}
	}
	return Mirror{Name: "npm", URL: "https://registry.npmjs.org"}
}
