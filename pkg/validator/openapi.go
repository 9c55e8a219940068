package validator

import (
	"errors"
	"fmt"
	"strings"

	apperrors "realtime-chat/backend/pkg/errors"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
)

// OpenAPIValidator checks JSON API requests against the OpenAPI document
type OpenAPIValidator struct {
	doc        *openapi3.T
	router     routers.Router
	schemaPath string
}

// NewOpenAPIValidator loads and validates the document at schemaPath
func NewOpenAPIValidator(schemaPath string) (*OpenAPIValidator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI schema from %s: %w", schemaPath, err)
	}

	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI schema: %w", err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("error creating OpenAPI router: %w", err)
	}

	return &OpenAPIValidator{
		doc:        doc,
		router:     router,
		schemaPath: schemaPath,
	}, nil
}

// SchemaPath is where the document was loaded from
func (v *OpenAPIValidator) SchemaPath() string {
	return v.schemaPath
}

// Middleware rejects requests whose parameters or body break the document.
// Requests for routes the document does not describe pass through.
func (v *OpenAPIValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route, pathParams, err := v.router.FindRoute(c.Request)
		if err != nil {
			c.Next()
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				// Sessions are checked by the auth middleware
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}

		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			c.Error(toAppError(err))
			c.Abort()
			return
		}

		c.Next()
	}
}

func toAppError(err error) *apperrors.AppError {
	var reqErr *openapi3filter.RequestError
	if !errors.As(err, &reqErr) {
		return apperrors.NewBadRequestError(apperrors.CodeInvalidRequest, "Invalid request").Wrap(err)
	}

	if reqErr.Parameter != nil {
		return apperrors.NewValidationError(reqErr.Parameter.Name,
			fmt.Sprintf("The %s parameter is invalid.", reqErr.Parameter.Name)).Wrap(err)
	}

	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		if pointer := schemaErr.JSONPointer(); len(pointer) > 0 {
			field := strings.Join(pointer, ".")
			return apperrors.NewValidationError(field,
				fmt.Sprintf("The %s field is invalid.", strings.ReplaceAll(field, "_", " "))).Wrap(err)
		}
	}

	return apperrors.NewBadRequestError(apperrors.CodeInvalidRequest, "Invalid request").Wrap(err)
}
