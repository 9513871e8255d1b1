package stt

import (
	"context"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

type GoogleSpeech struct {
	c *speech.Client

	SampleRateHz int32
}

func NewGoogleSpeech(ctx context.Context) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GoogleSpeech{
		c:            c,
		SampleRateHz: 16000,
	}, nil
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

// language example: "en-US", "id-ID"
func (g *GoogleSpeech) Transcribe(ctx context.Context, audio []byte, mimeType, language string) (string, error) {
	if language == "" {
		language = "en-US"
	}

	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   encodingFor(mimeType),
			SampleRateHertz:            g.SampleRateHz,
			LanguageCode:               language,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return "", err
	}

	var bestText string
	var bestConf float64
	for _, r := range resp.Results {
		for _, alt := range r.Alternatives {
			if alt.Transcript != "" && float64(alt.Confidence) >= bestConf {
				bestText = alt.Transcript
				bestConf = float64(alt.Confidence)
			}
		}
	}

	return bestText, nil
}

func encodingFor(mimeType string) speechpb.RecognitionConfig_AudioEncoding {
	switch {
	case strings.Contains(mimeType, "webm"):
		return speechpb.RecognitionConfig_WEBM_OPUS
	case strings.Contains(mimeType, "ogg"):
		return speechpb.RecognitionConfig_OGG_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
