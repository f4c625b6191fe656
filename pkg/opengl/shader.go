package opengl

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// program is a linked shader program with cached uniform locations
type program struct {
	id       uint32
	name     string
	uniforms map[string]int32
}

func newProgram(name, vertexSource, fragmentSource string) (*program, error) {
	vs, err := compileShader(vertexSource, gl.VERTEX_SHADER)
	if err != nil {
		return nil, fmt.Errorf("%s program: vertex stage: %w", name, err)
	}
	defer gl.DeleteShader(vs)

	fs, err := compileShader(fragmentSource, gl.FRAGMENT_SHADER)
	if err != nil {
		return nil, fmt.Errorf("%s program: fragment stage: %w", name, err)
	}
	defer gl.DeleteShader(fs)

	id := gl.CreateProgram()
	gl.AttachShader(id, vs)
	gl.AttachShader(id, fs)
	gl.LinkProgram(id)

	var status int32
	gl.GetProgramiv(id, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		msg := infoLog(id, gl.GetProgramiv, gl.GetProgramInfoLog)
		gl.DeleteProgram(id)
		return nil, fmt.Errorf("%s program: link failed: %s", name, msg)
	}
	gl.DetachShader(id, vs)
	gl.DetachShader(id, fs)
	return &program{id: id, name: name, uniforms: make(map[string]int32)}, nil
}

func (p *program) use() {
	gl.UseProgram(p.id)
}

// loc returns the location of a uniform; -1 for uniforms the compiler
// optimized out, which GL ignores on upload.
func (p *program) loc(name string) int32 {
	if l, ok := p.uniforms[name]; ok {
		return l
	}
	l := gl.GetUniformLocation(p.id, gl.Str(name+"\x00"))
	p.uniforms[name] = l
	return l
}

func (p *program) delete() {
	gl.DeleteProgram(p.id)
}

// compileShader compiles one stage; the returned error carries the driver log
func compileShader(source string, stage uint32) (uint32, error) {
	shader := gl.CreateShader(stage)

	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		msg := infoLog(shader, gl.GetShaderiv, gl.GetShaderInfoLog)
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("compile failed: %s", msg)
	}
	return shader, nil
}

// infoLog reads a shader or program log through the matching GL getters
func infoLog(obj uint32, getiv func(uint32, uint32, *int32), getLog func(uint32, int32, *int32, *uint8)) string {
	var n int32
	getiv(obj, gl.INFO_LOG_LENGTH, &n)
	if n <= 0 {
		return "no log"
	}
	buf := make([]uint8, n+1)
	getLog(obj, n, nil, &buf[0])
	return strings.TrimRight(string(buf), "\x00\n ")
}
