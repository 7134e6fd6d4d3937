package watcher

import (
	"bytes"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"facewatch-go/internal/integrations/deepstack"
	"facewatch-go/internal/util/filename"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	log "github.com/sirupsen/logrus"
)

// saveImage writes the processed frame into the snapshot folder:
// always <sanitized-lowercased-name>_latest.jpg, plus
// <raw-name>_<timestamp>.jpg when timestamped saving is on. A frame
// that does not decode is logged and skipped; the detection result
// already stands. Called with w.mu held.
func (w *Watcher) saveImage(img []byte) {
	decoded, err := imaging.Decode(bytes.NewReader(img))
	if err != nil {
		log.Warnf("Watcher %s unable to decode image, bad data", w.id)
		return
	}

	if w.save.Annotate && len(w.faces) > 0 {
		decoded = annotate(decoded, w.faces)
	}

	latest := filepath.Join(w.save.Folder, strings.ToLower(filename.Valid(w.name))+"_latest.jpg")
	if err := imaging.Save(decoded, latest); err != nil {
		log.WithError(err).Errorf("Failed to save %s", latest)
		return
	}

	if w.save.Timestamped {
		stamped := filepath.Join(w.save.Folder, fmt.Sprintf("%s_%s.jpg", w.name, w.lastDetection))
		if err := imaging.Save(decoded, stamped); err != nil {
			log.WithError(err).Errorf("Failed to save %s", stamped)
			return
		}
		log.Infof("Saved file %s", stamped)
	}
}

// annotate draws the face bounding boxes onto the frame, with the
// identity and confidence next to recognised ones.
func annotate(img image.Image, preds []deepstack.Prediction) image.Image {
	dc := gg.NewContextForImage(img)
	for _, p := range preds {
		dc.SetRGB(1, 0, 0)
		dc.SetLineWidth(3)
		dc.DrawRectangle(
			float64(p.XMin),
			float64(p.YMin),
			float64(p.XMax-p.XMin),
			float64(p.YMax-p.YMin),
		)
		dc.Stroke()

		if p.UserID != nil {
			label := fmt.Sprintf("%s %.1f%%", *p.UserID, p.Confidence*100)
			dc.DrawString(label, float64(p.XMin), float64(p.YMin)-4)
		}
	}
	return dc.Image()
}
