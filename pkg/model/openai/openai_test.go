package openai

import (
	"strings"
	"testing"

	"zenith/pkg/domain"
	"zenith/pkg/model"
)

func TestConvertMessageAttachesScreenshotImage(t *testing.T) {
	dataURI := "data:image/png;base64,iVBORw0KGgo="

	msg := model.Message{
		Role: domain.RoleUser,
		Content: []model.Content{
			{Type: model.ContentTypeToolResult, ToolResult: &model.ToolCallResult{
				ToolCallID: "call-1",
				Name:       "screenshot_website",
				Result: &domain.ToolResult{
					Status:  domain.StatusSuccess,
					Message: "Screenshot captured",
					Image:   dataURI,
				},
			}},
		},
	}

	out := convertMessage(msg)
	if len(out) != 2 {
		t.Fatalf("messages = %d, want tool message plus image message", len(out))
	}

	tool := out[0].OfTool
	if tool == nil {
		t.Fatalf("out[0] = %+v, want tool message", out[0])
	}
	body := tool.Content.OfString.Value
	if strings.Contains(body, dataURI) {
		t.Error("tool message inlines the data URI")
	}
	if !strings.Contains(body, "follows as an image") {
		t.Errorf("tool message body = %q, does not point at the image", body)
	}

	user := out[1].OfUser
	if user == nil {
		t.Fatalf("out[1] = %+v, want user message", out[1])
	}
	parts := user.Content.OfArrayOfContentParts
	if len(parts) != 1 || parts[0].OfImageURL == nil {
		t.Fatalf("content parts = %+v, want a single image part", parts)
	}
	if got := parts[0].OfImageURL.ImageURL.URL; got != dataURI {
		t.Errorf("image URL = %q, want the screenshot data URI", got)
	}
}

func TestConvertMessageToolResultsPrecedeUserText(t *testing.T) {
	msg := model.Message{
		Role: domain.RoleUser,
		Content: []model.Content{
			{Type: model.ContentTypeText, Text: "looks wrong"},
			{Type: model.ContentTypeToolResult, ToolResult: &model.ToolCallResult{
				ToolCallID: "call-9",
				Result:     &domain.ToolResult{Status: domain.StatusSuccess, Message: "ok"},
			}},
		},
	}

	out := convertMessage(msg)
	if len(out) != 2 {
		t.Fatalf("messages = %d, want 2", len(out))
	}
	if out[0].OfTool == nil {
		t.Errorf("out[0] = %+v, want tool message first", out[0])
	}
	if out[1].OfUser == nil {
		t.Errorf("out[1] = %+v, want user text second", out[1])
	}
}

func TestImageMessageEmptyResult(t *testing.T) {
	if m := imageMessage(nil); m != nil {
		t.Errorf("imageMessage(nil) = %+v, want nil", m)
	}
	if m := imageMessage(&domain.ToolResult{Status: domain.StatusSuccess}); m != nil {
		t.Errorf("imageMessage(no image) = %+v, want nil", m)
	}
}
