//go:build !js_eval

package unitboot

// NewJSEvaluator is unavailable without the js_eval build tag. Guards naming
// the js engine fail with ErrNoEvaluator.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = applyJSEvaluatorOptions(opts)
	return nil
}

func jsEvaluatorAvailable() bool {
	return false
}
