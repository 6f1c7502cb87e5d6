package opengl

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/go-gl/gl/v4.3-core/gl"
	"github.com/san-kum/orbits/internal/compute"
	"github.com/san-kum/orbits/internal/logging"
	"go.uber.org/zap"
)

var (
	//go:embed shaders/orbit.comp
	ComputeSource string

	//go:embed shaders/point.vert
	VertexSource string

	//go:embed shaders/point.frag
	FragmentSource string
)

// Init loads the GL function pointers for the current context and logs the
// compute limits of the device.
func Init() error {
	if err := gl.Init(); err != nil {
		return &compute.DeviceError{Op: "gl init", Status: -1, Err: err}
	}

	var maxCount, maxSize [3]int32
	for i := uint32(0); i < 3; i++ {
		gl.GetIntegeri_v(gl.MAX_COMPUTE_WORK_GROUP_COUNT, i, &maxCount[i])
		gl.GetIntegeri_v(gl.MAX_COMPUTE_WORK_GROUP_SIZE, i, &maxSize[i])
	}
	logging.Named("opengl").Info("context ready",
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.Int32s("max_work_groups", maxCount[:]),
		zap.Int32s("max_work_group_size", maxSize[:]),
	)
	return nil
}

// LoadSource returns the contents of path, or fallback when path is empty.
func LoadSource(path, fallback string) (string, error) {
	if path == "" {
		return fallback, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read shader: %w", err)
	}
	return string(data), nil
}

// WithWorkGroupSize injects the WORK_GROUP_SIZE define after the #version
// line of a compute shader source.
func WithWorkGroupSize(src string, size int) string {
	define := fmt.Sprintf("#define WORK_GROUP_SIZE %d\n", size)
	if i := strings.Index(src, "\n"); i >= 0 && strings.HasPrefix(src, "#version") {
		return src[:i+1] + define + src[i+1:]
	}
	return define + src
}

func compileShader(kind uint32, name, src string) (uint32, error) {
	shader := gl.CreateShader(kind)
	csources, free := gl.Strs(src + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, &compute.DeviceError{Op: "compile " + name + " shader", Status: int(status), Log: strings.TrimRight(log, "\x00")}
	}
	return shader, nil
}

func linkProgram(name string, shaders ...uint32) (uint32, error) {
	program := gl.CreateProgram()
	for _, s := range shaders {
		gl.AttachShader(program, s)
	}
	gl.LinkProgram(program)
	for _, s := range shaders {
		gl.DeleteShader(s)
	}

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)
		return 0, &compute.DeviceError{Op: "link " + name + " program", Status: int(status), Log: strings.TrimRight(log, "\x00")}
	}
	return program, nil
}

// CompileCompute builds a compute program.
func CompileCompute(src string) (uint32, error) {
	shader, err := compileShader(gl.COMPUTE_SHADER, "compute", src)
	if err != nil {
		return 0, err
	}
	return linkProgram("compute", shader)
}

// CompileProgram builds a vertex + fragment program.
func CompileProgram(vertSrc, fragSrc string) (uint32, error) {
	vs, err := compileShader(gl.VERTEX_SHADER, "vertex", vertSrc)
	if err != nil {
		return 0, err
	}
	fs, err := compileShader(gl.FRAGMENT_SHADER, "fragment", fragSrc)
	if err != nil {
		gl.DeleteShader(vs)
		return 0, err
	}
	return linkProgram("render", vs, fs)
}

// checkLocation turns the -1 that GL reports for a name the linked program
// does not use into a configuration error.
func checkLocation(kind, name string, loc int32) (int32, error) {
	if loc < 0 {
		return -1, &compute.ConfigError{Resource: kind + " " + name, Reason: "not found in program"}
	}
	return loc, nil
}

func uniform(program uint32, name string) (int32, error) {
	return checkLocation("uniform", name, gl.GetUniformLocation(program, gl.Str(name+"\x00")))
}

func attribute(program uint32, name string) (uint32, error) {
	loc, err := checkLocation("attribute", name, gl.GetAttribLocation(program, gl.Str(name+"\x00")))
	return uint32(loc), err
}

// uniforms resolves every name in names, failing on the first one missing.
func uniforms(program uint32, names ...string) ([]int32, error) {
	locs := make([]int32, len(names))
	for i, name := range names {
		loc, err := uniform(program, name)
		if err != nil {
			return nil, err
		}
		locs[i] = loc
	}
	return locs, nil
}

// checkError converts a pending GL error into a DeviceError.
func checkError(op string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return &compute.DeviceError{Op: op, Status: int(code)}
	}
	return nil
}
