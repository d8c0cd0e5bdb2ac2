package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"blobvault/internal/model"
	"blobvault/internal/service"
	"blobvault/internal/store"
	"blobvault/internal/validate"
)

// IngestMetrics is the slice of instrumentation the upload handler feeds.
// A nil value disables it.
type IngestMetrics interface {
	AddIngestBytes(n int64)
	IncDuplicateHit()
}

// uploadResponse is the blob record plus a note flagging duplicates, so a
// repeat uploader learns its content was already present.
type uploadResponse struct {
	*model.Blob
	Note string `json:"note,omitempty"`
}

// Upload accepts a multipart upload (field name: file) and runs it through
// the ingestion pipeline. Novel content answers 201; content whose digest is
// already indexed answers 200 with a "duplicate" note.
//
// Optional form fields: name (label), compress ("0"/"false" disables the
// configured default), skip_validation ("1"/"true" bypasses the structural
// check).
func Upload(svc service.BlobService, compress bool, m IngestMetrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		if fh.Filename == "" {
			return writeError(c, fiber.StatusBadRequest, "EMPTY_FILE", "empty file")
		}
		if !allowedExtension(fh.Filename) {
			return writeError(c, fiber.StatusBadRequest, "INVALID_FILE_EXTENSION", "invalid file extension, allowed: .json, .json.gz")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		if v := c.FormValue("compress"); v != "" {
			compress = v != "0" && !strings.EqualFold(v, "false")
		}
		skip := false
		if v := c.FormValue("skip_validation"); v != "" {
			skip = v == "1" || strings.EqualFold(v, "true")
		}

		res, err := svc.Ingest(c.UserContext(), f, service.IngestOptions{
			Name:           c.FormValue("name"),
			Filename:       fh.Filename,
			Compress:       compress,
			SkipValidation: skip,
		})
		if err != nil {
			if v, ok := validate.AsViolation(err); ok {
				return writeError(c, fiber.StatusBadRequest, "INVALID_JSON", v.Error())
			}
			if errors.Is(err, store.ErrSizeExceeded) {
				return writeError(c, fiber.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "upload exceeds the size limit")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}

		if m != nil {
			m.AddIngestBytes(res.Blob.Size)
			if res.Duplicate {
				m.IncDuplicateHit()
			}
		}

		if res.Duplicate {
			return c.Status(fiber.StatusOK).JSON(uploadResponse{Blob: res.Blob, Note: "duplicate"})
		}
		return c.Status(fiber.StatusCreated).JSON(uploadResponse{Blob: res.Blob})
	}
}

// Download streams the stored representation byte-exact, as an attachment.
func Download(svc service.BlobService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		blob, rc, err := svc.OpenArchive(c.UserContext(), id)
		if err != nil {
			return blobError(c, err)
		}

		if strings.HasSuffix(blob.Filename, ".gz") {
			c.Type("gz")
		} else {
			c.Type("json")
		}
		c.Set(fiber.HeaderContentDisposition,
			fmt.Sprintf("attachment; filename=%q", blob.Filename))
		return c.SendStream(rc)
	}
}

// GetJSON streams the decompressed JSON content.
func GetJSON(svc service.BlobService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		_, rc, err := svc.OpenContent(c.UserContext(), id)
		if err != nil {
			return blobError(c, err)
		}

		c.Type("json")
		return c.SendStream(rc)
	}
}

// ListBlobs returns all blob records, newest first.
func ListBlobs(svc service.BlobService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		blobs, err := svc.List(c.UserContext())
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(fiber.Map{
			"blobs": blobs,
			"count": len(blobs),
		})
	}
}

// DeleteBlob removes the blob record and its backing file.
func DeleteBlob(svc service.BlobService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		if err := svc.Delete(c.UserContext(), id); err != nil {
			return blobError(c, err)
		}
		return c.JSON(fiber.Map{"deleted": id})
	}
}

func allowedExtension(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".json") || strings.HasSuffix(lower, ".json.gz")
}

func parseID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", c.Params("id"))
	}
	return id, nil
}

func blobError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "blob not found")
	case errors.Is(err, service.ErrIDRequired):
		return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
