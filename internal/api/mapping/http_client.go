package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var _ Client = (*HTTPClient)(nil)

// errStatusNotFound marks a provider 404, which means "no such record"
// rather than a provider failure.
var errStatusNotFound = errors.New("mapping provider returned not found")

// HTTPClient talks to a Places-style JSON API over HTTP.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  os.Getenv("MAPPING_API_KEY"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *HTTPClient) SearchCities(ctx context.Context, query string) ([]CityCandidate, error) {
	ctx, span := otel.Tracer("MappingClient").Start(ctx, "SearchCities")
	defer span.End()
	span.SetAttributes(attribute.String("mapping.query", query))

	var payload struct {
		Results []CityCandidate `json:"results"`
	}
	endpoint := fmt.Sprintf("%s/cities:search?query=%s", c.baseURL, url.QueryEscape(query))
	if err := c.get(ctx, endpoint, &payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "City search failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("mapping.results", len(payload.Results)))
	span.SetStatus(codes.Ok, "City search completed")
	return payload.Results, nil
}

func (c *HTTPClient) GetPlaceDetails(ctx context.Context, id string) (*PlaceDetails, error) {
	ctx, span := otel.Tracer("MappingClient").Start(ctx, "GetPlaceDetails")
	defer span.End()
	span.SetAttributes(attribute.String("mapping.place_id", id))

	var details PlaceDetails
	endpoint := fmt.Sprintf("%s/places/%s", c.baseURL, url.PathEscape(id))
	if err := c.get(ctx, endpoint, &details); err != nil {
		if errors.Is(err, errStatusNotFound) {
			span.SetStatus(codes.Ok, "Place not found")
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Place details failed")
		return nil, err
	}
	if details.ID == "" {
		span.SetStatus(codes.Ok, "Place not found")
		return nil, nil
	}

	span.SetStatus(codes.Ok, "Place details fetched")
	return &details, nil
}

func (c *HTTPClient) SearchPlace(ctx context.Context, query string) (*PlaceDetails, error) {
	ctx, span := otel.Tracer("MappingClient").Start(ctx, "SearchPlace")
	defer span.End()
	span.SetAttributes(attribute.String("mapping.query", query))

	var payload struct {
		Results []PlaceDetails `json:"results"`
	}
	endpoint := fmt.Sprintf("%s/places:search?query=%s", c.baseURL, url.QueryEscape(query))
	if err := c.get(ctx, endpoint, &payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Place search failed")
		return nil, err
	}
	if len(payload.Results) == 0 {
		span.SetStatus(codes.Ok, "Place search empty")
		return nil, nil
	}

	span.SetStatus(codes.Ok, "Place search completed")
	return &payload.Results[0], nil
}

func (c *HTTPClient) get(ctx context.Context, endpoint string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errStatusNotFound
	}
	if resp.StatusCode >= 400 {
		return parseProviderError(resp)
	}

	return json.NewDecoder(resp.Body).Decode(dst)
}

func parseProviderError(resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil || len(data) == 0 {
		return fmt.Errorf("mapping provider error: %s", resp.Status)
	}

	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("mapping provider error: %s", resp.Status)
	}
	if payload.Error.Message != "" {
		return errors.New(payload.Error.Message)
	}

	return fmt.Errorf("mapping provider error: %s", resp.Status)
}
