package remote

import (
	"encoding/json"
	"net/http"

	"k8s.io/klog/v2"

	"github.com/mlmd/pairnet/pkg/model"
)

// NewHandler exposes a local backend over the forward wire. Schema problems
// in the request are the client's fault (400); a failed forward pass is not
// (500, details in the server log).
func NewHandler(inv model.Invoker) http.Handler {
	return &handler{inv: inv}
}

type handler struct {
	inv model.Invoker
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := klog.FromContext(ctx)

	if r.URL.Path != forwardPath {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if r.Method != "POST" {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var wireReq forwardRequest
	if err := json.NewDecoder(r.Body).Decode(&wireReq); err != nil {
		http.Error(w, "decoding request: "+err.Error(), http.StatusBadRequest)
		return
	}

	in, err := inputFromWire(wireReq.Inputs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	out, err := h.inv.Forward(ctx, &model.Request{
		Inputs:       in,
		WantVirial:   wireReq.WantVirial,
		ExtraOutputs: wireReq.ExtraOutputs,
	})
	if err != nil {
		log.Error(err, "forward pass failed", "nodes", in.Nodes, "edges", in.Edges)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	wireResp := forwardResponse{Outputs: make(map[string]tensorWire, len(out))}
	for name, t := range out {
		encoded, err := encodeTensor(t)
		if err != nil {
			log.Error(err, "encoding output", "name", name)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		wireResp.Outputs[name] = encoded
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(&wireResp); err != nil {
		log.Error(err, "writing response")
	}
}
