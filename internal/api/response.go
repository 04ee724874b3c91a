package api

import (
	"encoding/json"
	"log"
	"net/http"
)

// Response is the envelope every endpoint answers with. code 0 means
// success; non-zero codes double as HTTP status codes.
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

func writeResponse(w http.ResponseWriter, resp Response) {
	status := http.StatusOK
	if resp.Code >= 400 && resp.Code < 600 {
		status = resp.Code
	} else if resp.Code != 0 {
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeOK(w http.ResponseWriter, data interface{}) {
	writeResponse(w, Response{Code: 0, Msg: "ok", Data: data})
}

func writeOKMsg(w http.ResponseWriter, msg string, data interface{}) {
	writeResponse(w, Response{Code: 0, Msg: msg, Data: data})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeResponse(w, Response{Code: code, Msg: msg})
}
