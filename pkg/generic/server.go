package generic

import "github.com/gin-gonic/gin"

// Server is the http part shared by every api server of the process.
type Server struct {
	Router  *gin.Engine
	Port    string
	Methods []string
}
