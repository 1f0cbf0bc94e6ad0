package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/vikranta/safety/backend/internal/apperr"
	"github.com/vikranta/safety/backend/internal/geo"
)

const (
	defaultGeminiURL   = "https://generativelanguage.googleapis.com/v1beta"
	defaultZoneRadius  = 10.0
	maxZoneRadius      = 100.0
	generatedZoneDescr = "Dynamically generated zone"
)

const zonePrompt = `You are a safety advisor API. Based on GPS coordinates %f, %f, identify the city/area and provide 3-5 safety zones within %gkm.

Return ONLY valid JSON with this EXACT structure:
[
  {
    "name": "Area Name - Zone Type",
    "zone_type": "safe_zone/caution_zone/restricted",
    "risk_level": "low/medium/high",
    "description": "Brief safety description",
    "coordinates": [[lng1, lat1], [lng2, lat2], [lng3, lat3], [lng4, lat4]]
  }
]

Guidelines:
- safe_zone: Tourist areas, malls, police stations, hotels (risk_level: low)
- caution_zone: Busy roads, markets, crowded areas (risk_level: medium)
- restricted: Government areas, isolated regions (risk_level: high)
- Coordinates should form a small rectangular area (0.01-0.02 degree difference)
- Base zones on real knowledge of the area

Return ONLY the JSON array, no markdown, no explanation.`

type ZoneGenConfig struct {
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
	RPS      float64
	CacheTTL time.Duration
}

type RejectedZone struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type GenerateResult struct {
	Zones    []GeofenceView `json:"zones"`
	Rejected []RejectedZone `json:"rejected,omitempty"`
	Cached   bool           `json:"cached"`
}

// ZoneGenerator asks Gemini for zones around a point and stores the valid ones.
type ZoneGenerator struct {
	cfg       ZoneGenConfig
	http      *http.Client
	limiter   *rate.Limiter
	cache     ZoneCache
	geofences *GeofenceService
	log       logrus.FieldLogger
}

func NewZoneGenerator(cfg ZoneGenConfig, cache ZoneCache, geofences *GeofenceService, log logrus.FieldLogger) *ZoneGenerator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGeminiURL
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 1
	}
	return &ZoneGenerator{
		cfg:       cfg,
		http:      &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RPS), 1),
		cache:     cache,
		geofences: geofences,
		log:       log,
	}
}

// Generate returns zones around the point. Repeated requests for the same
// rounded point and radius are served from cache without creating zones again.
func (g *ZoneGenerator) Generate(ctx context.Context, createdBy *uuid.UUID, lat, lng, radiusKm float64) (*GenerateResult, error) {
	if g.cfg.APIKey == "" {
		return nil, apperr.New(apperr.KindUnavailable, "AI service not configured")
	}
	if !geo.ValidCoordinate(lat, lng) {
		return nil, apperr.Validation("latitude must be within [-90, 90] and longitude within [-180, 180]")
	}
	if radiusKm == 0 {
		radiusKm = defaultZoneRadius
	}
	if radiusKm < 0 || radiusKm > maxZoneRadius {
		return nil, apperr.Validation(fmt.Sprintf("radius must be between 0 and %g km", maxZoneRadius))
	}

	key := zoneCacheKey(lat, lng, radiusKm)
	var cached GenerateResult
	found, err := g.cache.Get(ctx, key, &cached)
	if err != nil {
		g.log.WithError(err).WithField("key", key).Warn("zone cache read failed")
	}
	if found {
		cached.Cached = true
		return &cached, nil
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, apperr.Wrap(apperr.KindRateLimited, "zone generation is busy, try again", err)
	}

	text, err := g.callGemini(ctx, fmt.Sprintf(zonePrompt, lat, lng, radiusKm))
	if err != nil {
		return nil, err
	}

	var proposals []CreateGeofenceInput
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &proposals); err != nil {
		return nil, apperr.Wrap(apperr.KindIntegration, "failed to parse AI response", err)
	}

	result := &GenerateResult{Zones: []GeofenceView{}}
	for _, p := range proposals {
		if p.Description == "" {
			p.Description = generatedZoneDescr
		}
		gf, err := g.geofences.Create(ctx, createdBy, p)
		if err != nil {
			g.log.WithField("name", p.Name).WithError(err).Warn("skipping generated zone")
			result.Rejected = append(result.Rejected, RejectedZone{Name: p.Name, Reason: apperr.PublicMessage(err)})
			continue
		}
		result.Zones = append(result.Zones, *gf)
	}

	g.log.WithFields(logrus.Fields{
		"latitude":  lat,
		"longitude": lng,
		"created":   len(result.Zones),
		"rejected":  len(result.Rejected),
	}).Info("generated zones")

	if err := g.cache.Set(ctx, key, result, g.cfg.CacheTTL); err != nil {
		g.log.WithError(err).WithField("key", key).Warn("zone cache write failed")
	}
	return result, nil
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		TopK            int     `json:"topK"`
		TopP            float64 `json:"topP"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

func (g *ZoneGenerator) callGemini(ctx context.Context, prompt string) (string, error) {
	var req geminiRequest
	req.Contents = []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}
	req.GenerationConfig.Temperature = 0.3
	req.GenerationConfig.TopK = 32
	req.GenerationConfig.TopP = 1
	req.GenerationConfig.MaxOutputTokens = 2048

	body, err := json.Marshal(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "encode gemini request", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(g.cfg.BaseURL, "/"), g.cfg.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "build gemini request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.cfg.APIKey)

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return "", apperr.Wrap(apperr.KindIntegration, "failed to generate zones", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", apperr.Wrap(apperr.KindIntegration, "failed to generate zones", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperr.Wrap(apperr.KindIntegration, "failed to generate zones",
			fmt.Errorf("gemini status %d: %s", resp.StatusCode, truncate(string(raw), 200)))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", apperr.Wrap(apperr.KindIntegration, "invalid AI response structure", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", apperr.New(apperr.KindIntegration, "no zones generated")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

func zoneCacheKey(lat, lng, radius float64) string {
	return fmt.Sprintf("zonegen:%.3f:%.3f:%g", lat, lng, radius)
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
