package realtime

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v3"

	"github.com/ringline/backend/pkg/response"
)

// ICEServers builds the STUN/TURN list browsers use for their RTCPeerConnection.
// TURN urls get the shared credentials; STUN urls never carry any.
func ICEServers(urls []string, username, credential string) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		s := webrtc.ICEServer{URLs: []string{u}}
		if isTURN(u) && username != "" {
			s.Username = username
			s.Credential = credential
			s.CredentialType = webrtc.ICECredentialTypePassword
		}
		servers = append(servers, s)
	}
	return servers
}

func isTURN(url string) bool {
	return strings.HasPrefix(url, "turn:") || strings.HasPrefix(url, "turns:")
}

// ICEHandler handles GET /api/v1/ice-servers.
func ICEHandler(servers []webrtc.ICEServer) gin.HandlerFunc {
	return func(c *gin.Context) {
		response.OK(c, gin.H{"iceServers": servers})
	}
}
