package api

import (
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/SUNET/go-xmlsign/pkg/dsig"
	"github.com/SUNET/go-xmlsign/pkg/logging"
	"github.com/SUNET/go-xmlsign/pkg/pipeline"
	"github.com/SUNET/go-xmlsign/pkg/query"
	"github.com/SUNET/go-xmlsign/pkg/xmltree"
)

// maxRequestBody bounds the size of documents accepted for signing.
const maxRequestBody = 10 * 1024 * 1024

// RequestIDMiddleware assigns every request a unique ID, exposed in the
// X-Request-ID response header and attached to request logs.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// RegisterAPIRoutes registers the signing endpoints on the given Gin router.
//
// Endpoints:
//
//	POST /sign    - Sign the XML template document in the request body with
//	                the server-side key; returns the signed document
//	GET  /status  - Report run counters and key information
func RegisterAPIRoutes(r *gin.Engine, serverCtx *ServerContext) {
	r.POST("/sign", SignHandler(serverCtx))

	r.GET("/status", func(c *gin.Context) {
		serverCtx.RLock()
		defer serverCtx.RUnlock()
		status := gin.H{
			"documents_signed": serverCtx.DocumentsDone,
			"key_loaded":       serverCtx.Key != nil,
		}
		if !serverCtx.LastSigned.IsZero() {
			status["last_signed"] = serverCtx.LastSigned.Format(time.RFC3339)
		}
		c.JSON(200, status)
	})
}

// SignHandler godoc
// @Summary Sign an XML template document
// @Description Signs every signature template in the posted document with the server-side key
// @Accept application/xml
// @Produce application/xml
// @Success 200 {string} string "signed document"
// @Router /sign [post]
func SignHandler(serverCtx *ServerContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetString("request_id")

		serverCtx.RLock()
		key := serverCtx.Key
		signing := serverCtx.Signing
		serverCtx.RUnlock()

		if key == nil {
			c.JSON(503, gin.H{"error": "no signing key configured"})
			return
		}

		data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBody))
		if err != nil || len(data) == 0 {
			c.JSON(400, gin.H{"error": "empty or unreadable request body"})
			return
		}

		start := time.Now()
		signed, count, err := pipeline.SignBytes(data, key, signing, serverCtx.Logger)
		elapsed := time.Since(start)

		if serverCtx.Metrics != nil {
			serverCtx.Metrics.RecordRun(count, elapsed, err)
		}

		if err != nil {
			status := statusForError(err)
			serverCtx.Logger.Error("Signing request failed",
				logging.F("request_id", requestID),
				logging.F("reason", failureReason(err)),
				logging.F("error", err.Error()))
			c.JSON(status, gin.H{"error": err.Error(), "reason": failureReason(err)})
			return
		}

		serverCtx.RecordSigned()
		serverCtx.Logger.Info("Document signed",
			logging.F("request_id", requestID),
			logging.F("signatures", count),
			logging.F("elapsed", elapsed.String()))
		c.Data(200, "application/xml", signed)
	}
}

// statusForError maps signing failures to HTTP status codes: malformed input
// is the client's fault, anything else is a server-side processing failure.
func statusForError(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrParse),
		errors.Is(err, pipeline.ErrRequiredNodeMissing),
		errors.Is(err, pipeline.ErrNoSignatureTemplate),
		errors.Is(err, query.ErrMalformedBindingList),
		errors.Is(err, query.ErrInvalidExpression),
		errors.Is(err, xmltree.ErrMissingAttribute),
		errors.Is(err, xmltree.ErrDuplicateIdentifier):
		return 422
	default:
		return 500
	}
}

// failureReason maps an error to its taxonomy class for metrics and logs.
func failureReason(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrParse):
		return "parse"
	case errors.Is(err, pipeline.ErrRequiredNodeMissing):
		return "required_node_missing"
	case errors.Is(err, pipeline.ErrNoSignatureTemplate):
		return "no_signature_template"
	case errors.Is(err, pipeline.ErrQuery):
		return "query"
	case errors.Is(err, query.ErrMalformedBindingList):
		return "malformed_binding_list"
	case errors.Is(err, query.ErrNamespaceRegistrationFailed):
		return "namespace_registration"
	case errors.Is(err, query.ErrInvalidExpression):
		return "invalid_expression"
	case errors.Is(err, xmltree.ErrMissingAttribute):
		return "identifier_missing"
	case errors.Is(err, xmltree.ErrDuplicateIdentifier):
		return "identifier_duplicate"
	case errors.Is(err, dsig.ErrKeyLoad):
		return "key_load"
	case errors.Is(err, dsig.ErrKeyFormatUnsupported):
		return "key_format"
	case errors.Is(err, dsig.ErrReferenceResolution):
		return "reference_resolution"
	case errors.Is(err, dsig.ErrDigest):
		return "digest"
	case errors.Is(err, dsig.ErrSigning):
		return "signing"
	default:
		return "internal"
	}
}
