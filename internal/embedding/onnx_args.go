package embedding

import "fmt"

func validateONNXArgs(dimensions, maxTokens int) error {
	if dimensions <= 0 {
		return fmt.Errorf("onnx: dimensions must be positive, got %d", dimensions)
	}
	if maxTokens <= 2 {
		return fmt.Errorf("onnx: max_tokens must exceed 2, got %d", maxTokens)
	}
	return nil
}
