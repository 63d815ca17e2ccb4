package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"circle/internal/apperr"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const imgurEndpoint = "https://api.imgur.com/3/image"

// maxImagePixels 解码前按头部声明的尺寸拦截，避免小文件解出超大位图
const maxImagePixels = 40_000_000

// ImgurResponse Imgur API 响应结构
type ImgurResponse struct {
	Data struct {
		ID         string `json:"id"`
		Link       string `json:"link"`
		DeleteHash string `json:"deletehash"`
		Type       string `json:"type"`
	} `json:"data"`
	Success bool `json:"success"`
	Status  int  `json:"status"`
}

// ImageUploadResult 上传结果
type ImageUploadResult struct {
	URL        string `json:"url"`
	ID         string `json:"id"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	DeleteHash string `json:"-"`
}

// ImageOptions 上传前的缩放规则
type ImageOptions struct {
	MaxSide int  // 最长边上限
	Square  bool // 居中裁剪为正方形
}

var (
	PostImage   = ImageOptions{MaxSide: 1080}
	AvatarImage = ImageOptions{MaxSide: 320, Square: true}
)

// ImageUploader 图片存储
type ImageUploader interface {
	Upload(ctx context.Context, r io.Reader, opts ImageOptions) (*ImageUploadResult, error)
}

// ImgurUploader 缩放后转 JPEG 上传到 Imgur
type ImgurUploader struct {
	clientID string
	endpoint string
	client   *http.Client
}

func NewImgurUploader(clientID string) *ImgurUploader {
	return &ImgurUploader{
		clientID: clientID,
		endpoint: imgurEndpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (u *ImgurUploader) Upload(ctx context.Context, r io.Reader, opts ImageOptions) (*ImageUploadResult, error) {
	if u.clientID == "" {
		return nil, apperr.Unavailable("图片上传未配置")
	}

	// 超出大小限制时这里返回 *http.MaxBytesError
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	img = ResizeImage(img, opts)

	var encoded bytes.Buffer
	if err := jpeg.Encode(&encoded, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("编码图片失败: %w", err)
	}

	res, err := u.send(ctx, encoded.Bytes())
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	res.Width, res.Height = b.Dx(), b.Dy()
	return res, nil
}

func (u *ImgurUploader) send(ctx context.Context, data []byte) (*ImageUploadResult, error) {
	var requestBody bytes.Buffer
	writer := multipart.NewWriter(&requestBody)

	if err := writer.WriteField("image", base64.StdEncoding.EncodeToString(data)); err != nil {
		return nil, fmt.Errorf("写入请求体失败: %w", err)
	}
	if err := writer.WriteField("type", "base64"); err != nil {
		return nil, fmt.Errorf("写入请求体失败: %w", err)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, &requestBody)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+u.clientID)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, apperr.Unavailable("图片服务暂不可用").Wrap(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	var imgurResp ImgurResponse
	if err := json.Unmarshal(body, &imgurResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if !imgurResp.Success {
		return nil, apperr.Unavailable("图片上传失败").Wrap(fmt.Errorf("imgur status %d", imgurResp.Status))
	}

	return &ImageUploadResult{
		URL:        imgurResp.Data.Link,
		ID:         imgurResp.Data.ID,
		DeleteHash: imgurResp.Data.DeleteHash,
	}, nil
}

// DecodeImage 按内容嗅探类型，只接受 jpeg/png/gif/webp
func DecodeImage(data []byte) (image.Image, error) {
	if ct := http.DetectContentType(data); !strings.HasPrefix(ct, "image/") {
		return nil, apperr.BadRequest("上传的文件不是图片")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.BadRequest("不支持的图片格式").Wrap(err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxImagePixels {
		return nil, apperr.BadRequest("图片尺寸过大").
			WithDetails(map[string]any{"width": cfg.Width, "height": cfg.Height})
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.BadRequest("不支持的图片格式").Wrap(err)
	}
	return img, nil
}

// ResizeImage 按规则缩放，不会放大
func ResizeImage(src image.Image, opts ImageOptions) image.Image {
	rect := src.Bounds()
	if opts.Square {
		side := min(rect.Dx(), rect.Dy())
		x0 := rect.Min.X + (rect.Dx()-side)/2
		y0 := rect.Min.Y + (rect.Dy()-side)/2
		rect = image.Rect(x0, y0, x0+side, y0+side)
	}

	w, h := rect.Dx(), rect.Dy()
	if opts.MaxSide > 0 && max(w, h) > opts.MaxSide {
		if w >= h {
			h = h * opts.MaxSide / w
			w = opts.MaxSide
		} else {
			w = w * opts.MaxSide / h
			h = opts.MaxSide
		}
	}
	if w == rect.Dx() && h == rect.Dy() && rect == src.Bounds() {
		return src
	}

	dst := image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, rect, draw.Over, nil)
	return dst
}
