package predictor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"foodcal/internal/calorie"
)

// LabelAnnotator is the slice of the Cloud Vision client the predictor uses.
type LabelAnnotator interface {
	AnnotateImage(ctx context.Context, req *visionpb.AnnotateImageRequest) (*visionpb.AnnotateImageResponse, error)
}

type visionClient struct {
	client *vision.ImageAnnotatorClient
}

// NewVisionAnnotator adapts a Cloud Vision client to LabelAnnotator.
func NewVisionAnnotator(client *vision.ImageAnnotatorClient) LabelAnnotator {
	return visionClient{client: client}
}

func (c visionClient) AnnotateImage(ctx context.Context, req *visionpb.AnnotateImageRequest) (*visionpb.AnnotateImageResponse, error) {
	batch, err := c.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{req},
	})
	if err != nil {
		return nil, err
	}
	responses := batch.GetResponses()
	if len(responses) == 0 {
		return nil, errors.New("vision returned an empty batch")
	}
	return responses[0], nil
}

// VisionPredictor uses Google Cloud Vision label detection.
type VisionPredictor struct {
	annotator  LabelAnnotator
	maxResults int32
	table      calorie.Table
	log        *zap.Logger
}

func NewVisionPredictor(annotator LabelAnnotator, maxResults int, table calorie.Table, log *zap.Logger) *VisionPredictor {
	if maxResults <= 0 {
		maxResults = 10
	}
	return &VisionPredictor{
		annotator:  annotator,
		maxResults: int32(maxResults),
		table:      table,
		log:        log,
	}
}

// DialVision creates a Cloud Vision client. An empty credentialsFile falls
// back to application default credentials.
func DialVision(ctx context.Context, credentialsFile string, opts ...option.ClientOption) (*vision.ImageAnnotatorClient, error) {
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return client, nil
}

func (p *VisionPredictor) Name() string { return "vision" }

func (p *VisionPredictor) Predict(ctx context.Context, imagePath string) Result {
	raw, err := os.ReadFile(imagePath)
	if err != nil {
		return p.fail(imagePath, fmt.Errorf("read image: %w", err))
	}

	res, err := p.annotator.AnnotateImage(ctx, &visionpb.AnnotateImageRequest{
		Image: &visionpb.Image{Content: raw},
		Features: []*visionpb.Feature{
			{Type: visionpb.Feature_LABEL_DETECTION, MaxResults: p.maxResults},
		},
	})
	if err != nil {
		return p.fail(imagePath, fmt.Errorf("annotate image: %w", err))
	}
	if apiErr := res.GetError(); apiErr != nil && apiErr.GetCode() != 0 {
		return p.fail(imagePath, fmt.Errorf("vision status %d: %s", apiErr.GetCode(), apiErr.GetMessage()))
	}

	labels := res.GetLabelAnnotations()
	if len(labels) == 0 {
		p.log.Info("Vision returned no labels", zap.String("path", imagePath))
		return lowConfidence("", 0)
	}

	label := strings.ToLower(labels[0].GetDescription())
	return confident(label, p.table.Lookup(label), score(labels[0].GetScore()))
}

// score widens a float32 score without exposing float32 rounding noise.
func score(s float32) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(float64(s), 'g', -1, 32), 64)
	if err != nil {
		return float64(s)
	}
	return v
}

func (p *VisionPredictor) fail(imagePath string, err error) Result {
	p.log.Error("Vision prediction failed",
		zap.String("path", imagePath),
		zap.Error(err))
	return failed(err)
}
