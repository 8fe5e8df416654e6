// Package fileloader 读写常见的三维几何与体数据交换格式：
// 二进制小端 PLY、OBJ、OFF、STL、PPM/PFM 以及 16 位密度体数据，
// 并可将加载的三角网格导出为 GLB。
package fileloader
