package predictor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"foodcal/internal/calorie"
)

// clarifaiStatusSuccess is the API-level success code in every Clarifai response.
const clarifaiStatusSuccess = 10000

type ClarifaiOptions struct {
	BaseURL        string
	PAT            string
	UserID         string
	AppID          string
	ModelID        string
	ModelVersionID string
	Timeout        time.Duration
}

// ClarifaiPredictor submits images to a Clarifai model over the v2 REST API.
type ClarifaiPredictor struct {
	opts   ClarifaiOptions
	url    string
	client *http.Client
	table  calorie.Table
	log    *zap.Logger
}

func NewClarifaiPredictor(opts ClarifaiOptions, client *http.Client, table calorie.Table, log *zap.Logger) (*ClarifaiPredictor, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid clarifai url: %w", err)
	}

	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	endpoint := base.JoinPath("v2", "users", opts.UserID, "apps", opts.AppID,
		"models", opts.ModelID, "versions", opts.ModelVersionID, "outputs")

	return &ClarifaiPredictor{
		opts:   opts,
		url:    endpoint.String(),
		client: client,
		table:  table,
		log:    log,
	}, nil
}

func (p *ClarifaiPredictor) Name() string { return "clarifai" }

type clarifaiRequest struct {
	UserAppID clarifaiUserApp `json:"user_app_id"`
	Inputs    []clarifaiInput `json:"inputs"`
}

type clarifaiUserApp struct {
	UserID string `json:"user_id"`
	AppID  string `json:"app_id"`
}

type clarifaiInput struct {
	Data clarifaiData `json:"data"`
}

type clarifaiData struct {
	Image    *clarifaiImage    `json:"image,omitempty"`
	Concepts []clarifaiConcept `json:"concepts,omitempty"`
}

type clarifaiImage struct {
	Base64 string `json:"base64"`
}

type clarifaiConcept struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type clarifaiStatus struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
}

type clarifaiResponse struct {
	Status  clarifaiStatus `json:"status"`
	Outputs []struct {
		Data clarifaiData `json:"data"`
	} `json:"outputs"`
}

func (p *ClarifaiPredictor) Predict(ctx context.Context, imagePath string) Result {
	img, err := os.ReadFile(imagePath)
	if err != nil {
		return p.fail(imagePath, fmt.Errorf("read image: %w", err))
	}

	concepts, err := p.outputs(ctx, img)
	if err != nil {
		return p.fail(imagePath, err)
	}

	if len(concepts) == 0 {
		p.log.Info("Clarifai returned no concepts", zap.String("path", imagePath))
		return lowConfidence("", 0)
	}

	top := concepts[0]
	label := strings.ToLower(top.Name)
	return confident(label, p.table.Lookup(label), top.Value)
}

func (p *ClarifaiPredictor) outputs(ctx context.Context, img []byte) ([]clarifaiConcept, error) {
	payload, err := json.Marshal(clarifaiRequest{
		UserAppID: clarifaiUserApp{UserID: p.opts.UserID, AppID: p.opts.AppID},
		Inputs: []clarifaiInput{
			{Data: clarifaiData{Image: &clarifaiImage{Base64: base64.StdEncoding.EncodeToString(img)}}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Key "+p.opts.PAT)

	response, err := p.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 1<<10))
		return nil, fmt.Errorf("server response status code: %d, body: %s", response.StatusCode, body)
	}

	var resp clarifaiResponse
	if err := json.NewDecoder(response.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}

	if resp.Status.Code != clarifaiStatusSuccess {
		return nil, fmt.Errorf("clarifai status %d: %s", resp.Status.Code, resp.Status.Description)
	}

	if len(resp.Outputs) == 0 {
		return nil, nil
	}
	return resp.Outputs[0].Data.Concepts, nil
}

func (p *ClarifaiPredictor) fail(imagePath string, err error) Result {
	p.log.Error("Clarifai prediction failed",
		zap.String("path", imagePath),
		zap.String("model", p.opts.ModelID),
		zap.Error(err))
	return failed(err)
}
