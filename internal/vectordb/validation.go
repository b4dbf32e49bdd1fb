package vectordb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/wikivec/wikivec/internal/tracing"
)

// DeployedIndexNotFoundError is returned when the configured deployed index
// id is not present on the index endpoint.
type DeployedIndexNotFoundError struct {
	IndexEndpointID string
	DeployedIndexID string
	Available       []string
}

func (e *DeployedIndexNotFoundError) Error() string {
	return fmt.Sprintf("vectordb: deployed index %q not found on endpoint %s (available: %v)",
		e.DeployedIndexID, e.IndexEndpointID, e.Available)
}

// EndpointInfo holds basic metadata about the index endpoint.
type EndpointInfo struct {
	DisplayName     string
	DeployedIndexes []string
}

// ValidateDeployedIndex confirms the configured deployed index exists on the
// endpoint. Used by the readiness probe so a misdeployed index surfaces at
// startup instead of on the first query.
func (c *Client) ValidateDeployedIndex(ctx context.Context) error {
	info, err := c.describeEndpoint(ctx)
	if err != nil {
		return err
	}

	for _, id := range info.DeployedIndexes {
		if id == c.cfg.DeployedIndexID {
			c.log.Info("Deployed index validated",
				zap.String("index_endpoint_id", c.cfg.IndexEndpointID),
				zap.String("deployed_index_id", id),
			)
			return nil
		}
	}

	return &DeployedIndexNotFoundError{
		IndexEndpointID: c.cfg.IndexEndpointID,
		DeployedIndexID: c.cfg.DeployedIndexID,
		Available:       info.DeployedIndexes,
	}
}

func (c *Client) describeEndpoint(ctx context.Context) (*EndpointInfo, error) {
	base := c.cfg.Endpoint
	if base == "" {
		base = fmt.Sprintf("https://%s-aiplatform.googleapis.com", c.cfg.Location)
	}
	url := fmt.Sprintf("%s/v1/projects/%s/locations/%s/indexEndpoints/%s",
		base, c.cfg.ProjectID, c.cfg.Location, c.cfg.IndexEndpointID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &QueryError{Op: "describe_endpoint", Err: err}
	}
	tracing.InjectTraceparent(ctx, req)

	resp, err := c.httpw.Do(req)
	if err != nil {
		return nil, &QueryError{Op: "describe_endpoint", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &QueryError{
			Op:         "describe_endpoint",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("endpoint metadata fetch failed"),
		}
	}

	var result struct {
		DisplayName     string `json:"displayName"`
		DeployedIndexes []struct {
			ID string `json:"id"`
		} `json:"deployedIndexes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &QueryError{Op: "describe_endpoint", Err: err}
	}

	info := &EndpointInfo{DisplayName: result.DisplayName}
	for _, di := range result.DeployedIndexes {
		info.DeployedIndexes = append(info.DeployedIndexes, di.ID)
	}
	return info, nil
}
