package summarizer

import "errors"

// ErrMissingCredential indicates that no API key was configured for the provider.
var ErrMissingCredential = errors.New("summarizer: missing API key")

// AnalysisError is any failure to obtain a well-formed summary from the model.
type AnalysisError struct {
	Message string
	Err     error
}

func (e *AnalysisError) Error() string {
	return e.Message
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// IsAnalysisError reports whether err is an AnalysisError.
func IsAnalysisError(err error) bool {
	var analysisErr *AnalysisError
	return errors.As(err, &analysisErr)
}
