package encoder

import (
	"fmt"

	"github.com/daulet/tokenizers"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/Hyphonical/Scout/internal/embedding"
)

// EncodeText tokenizes, pads, and embeds a batch of texts (search queries or
// negative prompts). Inputs are truncated to maxTextTokens and right-padded
// to the batch's longest sequence.
func (o *Orchestrator) EncodeText(texts []string) ([]embedding.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := o.ensureText(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	tk := o.tokenizer
	o.mu.Unlock()

	type encoded struct {
		ids  []int64
		mask []int64
	}
	all := make([]encoded, len(texts))
	maxLen := 0
	for i, text := range texts {
		enc := tk.EncodeWithOptions(text, true, tokenizers.WithReturnAttentionMask())
		ids := enc.IDs
		if len(ids) > maxTextTokens {
			ids = ids[:maxTextTokens]
		}
		ids64 := make([]int64, len(ids))
		mask64 := make([]int64, len(ids))
		for j, v := range ids {
			ids64[j] = int64(v)
			mask64[j] = 1
		}
		if len(enc.AttentionMask) >= len(ids) {
			for j := range ids64 {
				mask64[j] = int64(enc.AttentionMask[j])
			}
		}
		all[i] = encoded{ids: ids64, mask: mask64}
		if len(ids64) > maxLen {
			maxLen = len(ids64)
		}
	}
	if maxLen == 0 {
		return nil, fmt.Errorf("encoder: all texts tokenized to zero length")
	}

	batch := len(texts)
	flatIDs := make([]int64, batch*maxLen)
	flatMask := make([]int64, batch*maxLen)
	for i, enc := range all {
		copy(flatIDs[i*maxLen:], enc.ids)
		copy(flatMask[i*maxLen:], enc.mask)
	}
	shape := ort.NewShape(int64(batch), int64(maxLen))

	idsTensor, err := ort.NewTensor(shape, flatIDs)
	if err != nil {
		return nil, fmt.Errorf("encoder: input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, flatMask)
	if err != nil {
		return nil, fmt.Errorf("encoder: attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	o.mu.Lock()
	outputs := []ort.Value{nil}
	err = o.textSession.Run([]ort.Value{idsTensor, maskTensor}, outputs)
	o.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("encoder: text session run: %w", err)
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("encoder: unexpected text output type")
	}
	outShape := tensor.GetShape()
	dim := int(outShape[len(outShape)-1])
	return toEmbeddings(tensor.GetData(), dim)
}

// EncodeQuery embeds a single text query, for search.
func (o *Orchestrator) EncodeQuery(text string) (embedding.Vector, error) {
	vecs, err := o.EncodeText([]string{text})
	if err != nil {
		return embedding.Vector{}, err
	}
	if len(vecs) == 0 {
		return embedding.Vector{}, fmt.Errorf("encoder: empty result for query")
	}
	return vecs[0], nil
}
