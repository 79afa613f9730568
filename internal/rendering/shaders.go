package rendering

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/go-gl/gl/v3.3-core/gl"
)

//go:embed all:shaders
var __shaders__ embed.FS

// buildProgram compiles and links the player's vertex/fragment pair from
// the embedded sources.
func buildProgram() (uint32, error) {
	vertex, err := compile("shaders/player/0.vertex.glsl", gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vertex)

	fragment, err := compile("shaders/player/1.fragment.glsl", gl.FRAGMENT_SHADER)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(fragment)

	program := gl.CreateProgram()
	gl.AttachShader(program, vertex)
	gl.AttachShader(program, fragment)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)

		logBuffer := make([]byte, logLength+1)
		logPtr := (*uint8)(gl.Ptr(&logBuffer[0]))

		gl.GetProgramInfoLog(program, logLength, nil, logPtr)
		logString := gl.GoStr(logPtr)

		gl.DeleteProgram(program)
		return 0, fmt.Errorf("failed to link player program:\n%s", logString)
	}
	return program, nil
}

func compile(name string, shaderType uint32) (uint32, error) {
	data, err := fs.ReadFile(__shaders__, name)
	if err != nil {
		return 0, err
	}

	handle := gl.CreateShader(shaderType)
	if handle == 0 {
		return 0, fmt.Errorf("failed to create shader handle for %s", name)
	}

	csources, free := gl.Strs(string(data) + "\x00")
	gl.ShaderSource(handle, 1, csources, nil)
	free()
	gl.CompileShader(handle)

	var status int32
	gl.GetShaderiv(handle, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(handle, gl.INFO_LOG_LENGTH, &logLength)

		logBuffer := make([]byte, logLength+1)
		logPtr := (*uint8)(gl.Ptr(&logBuffer[0]))

		gl.GetShaderInfoLog(handle, logLength, nil, logPtr)
		logString := gl.GoStr(logPtr)

		gl.DeleteShader(handle)
		return 0, fmt.Errorf("failed to compile shader %s:\n%s", name, logString)
	}
	return handle, nil
}
