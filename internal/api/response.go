package api

import (
	"encoding/json"
	"net/http"
)

const CodeOK = "ok"

// Response 統一回應格式
type Response struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func SuccessJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Code: CodeOK, Data: data})
}

// ErrorJSON code 為機器可讀的錯誤種類，message 給人看
func ErrorJSON(w http.ResponseWriter, status int, code string, message string, data any) {
	writeJSON(w, status, Response{Code: code, Message: message, Data: data})
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
